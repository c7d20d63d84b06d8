package checkpoint

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	defaultPath     = "/var/lib/undervoltctl/checkpoints"
)

// Config selects the checkpoint backend. Path is a directory for the file
// backend and a database file for sqlite.
type Config struct {
	Backend string
	Path    string
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendFile,
		Path:    defaultPath,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return errFactory.WithData(ErrUnknownBackend, c.Backend)
	}

	if c.Path == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "checkpoint path is empty")
	}

	return nil
}
