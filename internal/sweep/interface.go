package sweep

import (
	"context"

	"codeberg.org/mutker/undervoltctl/internal/curve"
)

// GovernorActuator reads and restores a core's frequency governor.
type GovernorActuator interface {
	CurrentGovernor(ctx context.Context, coreID int) (string, error)
	RestoreGovernor(ctx context.Context, coreID int, governor string) error
}

// ProbeResult is the probe's own verdict for one workload run.
type ProbeResult struct {
	Passed bool
}

// Metrics is a point-in-time hardware reading.
type Metrics struct {
	Temperature float64
}

// StabilityProbe runs a workload at a fixed frequency and voltage offset.
// SampleMetrics must not block.
type StabilityProbe interface {
	RunStabilityTest(ctx context.Context, coreID, frequencyMHz, voltageMV, durationSec int) (ProbeResult, error)
	SampleMetrics() (Metrics, error)
}

// VoltageActuator applies per-core voltage offsets to all four cores.
type VoltageActuator interface {
	ApplyOffsets(ctx context.Context, offsets [4]int) error
}

// CheckpointStore persists partial curves. Load returns (nil, nil) when no
// checkpoint exists.
type CheckpointStore interface {
	Load(ctx context.Context, coreID int) (*curve.Curve, error)
	Save(ctx context.Context, c *curve.Curve) error
}

// TestRecorder receives one record per voltage test.
type TestRecorder interface {
	Record(ctx context.Context, rec *TestRecord) error
}

// ProgressFunc receives progress snapshots. Returned errors are logged.
type ProgressFunc func(Progress) error

// Dependencies bundles the hardware and persistence collaborators of a run.
type Dependencies struct {
	Governor   GovernorActuator
	Probe      StabilityProbe
	Voltage    VoltageActuator
	Checkpoint CheckpointStore
	Recorder   TestRecorder
}
