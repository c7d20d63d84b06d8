package checkpoint

import (
	"context"

	"codeberg.org/mutker/undervoltctl/internal/curve"
)

// Store persists one partial curve per core. Load returns (nil, nil) when no
// checkpoint exists.
type Store interface {
	Load(ctx context.Context, coreID int) (*curve.Curve, error)
	Save(ctx context.Context, c *curve.Curve) error
	Delete(ctx context.Context, coreID int) error
	Close() error
}
