package sweep

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("sweep_invalid_configuration")
	ErrUnknownPreset = errors.ErrorCode("sweep_unknown_preset")
	ErrDecodeConfig  = errors.ErrorCode("sweep_config_decode_failed")

	// Run Errors
	ErrCancelled      = errors.ErrCancelled
	ErrInvalidCurve   = errors.ErrorCode("sweep_invalid_curve")
	ErrNoStablePoints = errors.ErrorCode("sweep_no_stable_points")
	ErrVerification   = errors.ErrorCode("sweep_verification_failed")

	// Stability test errors
	ErrTestTimeout      = errors.ErrorCode("sweep_test_timeout")
	ErrTemperatureAbort = errors.ErrorCode("sweep_temperature_abort")
	ErrProbeFailed      = errors.ErrorCode("sweep_probe_failed")
)

// errConsecutiveFailures stops a voltage search early. It never leaves the
// package: the search converts it into an unstable point.
var errConsecutiveFailures = errors.New().New(errors.ErrorCode("sweep_consecutive_failures"))

// ErrRunCancelled is returned alongside the partial curve when a run stops
// because of Cancel or context cancellation.
var ErrRunCancelled = errors.New().WithMessage(ErrCancelled, "sweep cancelled")
