package constants

import "time"

const (
	RequestTimeout  = 30 * time.Second
	SyncTimeout     = 20 * time.Second
	PushTimeout     = 15 * time.Second
	DatabaseTimeout = 5 * time.Second
)

const (
	// Reconnect backoff for the live channel: base delay doubles per attempt
	// up to the cap, then the session stops retrying until kicked.
	ReconnectBaseDelay   = 1 * time.Second
	ReconnectMaxDelay    = 30 * time.Second
	ReconnectMaxAttempts = 8

	// Transient HTTP sync failures retry with the same doubling policy.
	SyncRetryBaseDelay = 500 * time.Millisecond
	SyncRetryMaxDelay  = 10 * time.Second
	SyncRetryAttempts  = 3
)

const (
	OutboundQueueCapacity = 1024
	WSWriteTimeout        = 10 * time.Second
	WSPingInterval        = 30 * time.Second
	WSHandshakeTimeout    = 10 * time.Second
)

const (
	DBMaxOpenConns    = 4
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)
