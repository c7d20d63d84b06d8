package telemetry

import (
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
)

const (
	defaultDBPath        = "/var/lib/undervoltctl/telemetry.db"
	defaultBatchSize     = 16
	defaultFlushInterval = 5 * time.Second
)

type Config struct {
	Enabled       bool
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		DBPath:        defaultDBPath,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the rest if telemetry is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 {
		return errFactory.WithMessage(ErrInvalidConfig, "batch size must be at least 1")
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
