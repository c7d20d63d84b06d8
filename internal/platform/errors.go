package platform

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	// cpufreq Errors
	ErrGovernorReadFailed  = errors.ErrorCode("platform_governor_read_failed")
	ErrGovernorWriteFailed = errors.ErrorCode("platform_governor_write_failed")
	ErrFrequencyLockFailed = errors.ErrorCode("platform_frequency_lock_failed")
	ErrFrequencyRange      = errors.ErrorCode("platform_frequency_out_of_range")

	// Temperature Errors
	ErrTemperatureReadFailed = errors.ErrorCode("platform_temperature_read_failed")
	ErrNoTemperatureSensor   = errors.ErrorCode("platform_no_temperature_sensor")

	// Voltage Errors
	ErrInvalidOffsets     = errors.ErrorCode("platform_invalid_offsets")
	ErrVoltageApplyFailed = errors.ErrorCode("platform_voltage_apply_failed")

	ErrCommandNotFound = errors.ErrorCode("platform_command_not_found")
)
