package checkpoint

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrorCode("checkpoint_invalid_config")
	ErrUnknownBackend = errors.ErrorCode("checkpoint_unknown_backend")
	ErrInvalidCurve   = errors.ErrorCode("checkpoint_invalid_curve")
	ErrCorrupt        = errors.ErrorCode("checkpoint_corrupt")
	ErrStorageAccess  = errors.ErrorCode("checkpoint_storage_access_failed")
	ErrStorageClose   = errors.ErrShutdownFailed
)
