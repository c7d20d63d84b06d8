package curve

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	ErrEmptyCurve         = errors.ErrorCode("curve_empty")
	ErrVoltageOutOfRange  = errors.ErrorCode("curve_voltage_out_of_range")
	ErrNotAscending       = errors.ErrorCode("curve_frequencies_not_ascending")
	ErrDuplicateFrequency = errors.ErrorCode("curve_duplicate_frequency")
	ErrDecode             = errors.ErrorCode("curve_decode_failed")
	ErrFileAccess         = errors.ErrorCode("curve_file_access_failed")
)
