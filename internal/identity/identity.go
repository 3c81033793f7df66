package identity

import (
	"fmt"
	"os"
	"strings"

	"scout-sync/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// DeviceIdentity is the stable identifier of this device. It is generated
// once, persisted next to the database, and passed explicitly into the
// transport and sync layers so that echoed broadcasts can be recognized.
type DeviceIdentity struct {
	ID string
}

func (d DeviceIdentity) String() string { return d.ID }

// Load reads the persisted device ID, generating and persisting a fresh one
// on first run.
func Load(cfg *config.Config, logger zerolog.Logger) (DeviceIdentity, error) {
	data, err := os.ReadFile(cfg.DeviceIDPath)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			logger.Debug().Str("device_id", id).Msg("device identity loaded")
			return DeviceIdentity{ID: id}, nil
		}
		logger.Warn().Str("path", cfg.DeviceIDPath).Msg("device identity file is corrupt, regenerating")
	} else if !os.IsNotExist(err) {
		return DeviceIdentity{}, fmt.Errorf("failed to read device identity: %w", err)
	}

	id := uuid.New().String()
	if err := os.WriteFile(cfg.DeviceIDPath, []byte(id+"\n"), 0o600); err != nil {
		return DeviceIdentity{}, fmt.Errorf("failed to persist device identity: %w", err)
	}
	logger.Info().Str("device_id", id).Msg("device identity generated")
	return DeviceIdentity{ID: id}, nil
}

var Module = fx.Provide(Load)
