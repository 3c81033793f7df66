package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath       string
	ServerPort   string
	LogLevel     string
	ServerURL    string
	LiveURL      string
	DeviceIDPath string
	ScoutName    string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:       getEnv("DB_PATH", "scout.db"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ServerURL:    getEnv("SYNC_SERVER_URL", ""),
		LiveURL:      getEnv("SYNC_LIVE_URL", ""),
		DeviceIDPath: getEnv("DEVICE_ID_PATH", "device.id"),
		ScoutName:    getEnv("SCOUT_NAME", ""),
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SYNC_SERVER_URL is required")
	}
	if cfg.LiveURL == "" {
		// Derive the websocket endpoint from the sync server when not set.
		cfg.LiveURL = deriveLiveURL(cfg.ServerURL)
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("server_url", cfg.ServerURL).
		Str("live_url", cfg.LiveURL).
		Msg("configuration loaded")

	return cfg, nil
}

func deriveLiveURL(serverURL string) string {
	switch {
	case len(serverURL) > 8 && serverURL[:8] == "https://":
		return "wss://" + serverURL[8:] + "/ws"
	case len(serverURL) > 7 && serverURL[:7] == "http://":
		return "ws://" + serverURL[7:] + "/ws"
	}
	return serverURL + "/ws"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
