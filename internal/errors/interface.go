// Package errors gives every undervoltctl failure a stable ErrorCode. Each
// package declares its own codes in an errors.go file and builds errors
// through a Factory; callers match on codes with HasCode or errors.Is.
package errors

// ErrorCode identifies a kind of failure, e.g. "sweep_invalid_configuration".
// Codes are logged as error_code and stay stable across releases.
type ErrorCode string

// Error is a coded error. WithMessage and WithData return copies, so package
// level sentinels can be refined without being mutated.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	// GetData returns the value attached by WithData, such as the offending
	// preset name or the list of configuration violations.
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. Wrap keeps the cause reachable through
// Unwrap; WithData attaches a value that is printed after the message.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
