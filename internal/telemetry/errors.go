package telemetry

import "codeberg.org/mutker/undervoltctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("telemetry_invalid_db_path")

	// Collection Errors
	ErrInvalidRecord     = errors.ErrorCode("telemetry_invalid_record")
	ErrRecordFailed      = errors.ErrorCode("telemetry_record_failed")
	ErrTransactionFailed = errors.ErrorCode("telemetry_transaction_failed")
	ErrQueryFailed       = errors.ErrorCode("telemetry_query_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
	ErrServiceShutdown  = errors.ErrShutdownFailed
)
