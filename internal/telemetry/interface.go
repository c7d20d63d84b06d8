package telemetry

import (
	"context"

	"codeberg.org/mutker/undervoltctl/internal/sweep"
)

// Collector records stability tests.
type Collector interface {
	Record(ctx context.Context, rec *sweep.TestRecord) error
	Close() error
}

// Repository defines the interface for test record storage
type Repository interface {
	Store(rec *sweep.TestRecord) error
	Flush() error
	Close() error
}
