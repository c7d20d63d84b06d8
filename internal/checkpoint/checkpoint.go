// Package checkpoint stores partial frequency-voltage curves so an
// interrupted sweep can resume.
package checkpoint

import (
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
)

// New opens the store selected by cfg.
func New(cfg Config, log logger.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path, log)
	case BackendFile:
		return NewFileStore(cfg.Path, log)
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, cfg.Backend)
	}
}
