package sweep

import (
	"sync"
	"time"
)

// Progress is a snapshot of a running sweep.
type Progress struct {
	Running          bool
	CurrentFrequency int
	CurrentVoltage   int
	CompletedPoints  int
	TotalPoints      int
	// EstimatedRemaining is zero until a point completes in this run.
	EstimatedRemaining time.Duration
	StartTime          time.Time
}

// Percent returns completed/total*100, or 0 when total is 0.
func (p Progress) Percent() float64 {
	if p.TotalPoints == 0 {
		return 0
	}

	return float64(p.CompletedPoints) / float64(p.TotalPoints) * 100
}

// tracker owns the mutable progress state of a run.
type tracker struct {
	mu       sync.Mutex
	state    Progress
	resumed  int
	tested   int
	now      func() time.Time
	runStart time.Time
}

func newTracker(now func() time.Time) *tracker {
	return &tracker{now: now}
}

func (t *tracker) start(total, resumed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runStart = t.now()
	t.resumed = resumed
	t.tested = 0
	t.state = Progress{
		Running:         true,
		CompletedPoints: resumed,
		TotalPoints:     total,
		StartTime:       t.runStart,
	}
}

func (t *tracker) testing(freq, voltage int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.CurrentFrequency = freq
	t.state.CurrentVoltage = voltage
}

// complete records one tested point and the frequencies skipped after it.
// Skipped frequencies count towards the percentage so the total stays
// reachable, but the time per point is averaged over tested points only.
func (t *tracker) complete(skipped int) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tested++
	t.state.CompletedPoints += 1 + skipped
	if t.state.CompletedPoints > t.state.TotalPoints {
		t.state.CompletedPoints = t.state.TotalPoints
	}

	avg := t.now().Sub(t.runStart) / time.Duration(t.tested)
	remaining := t.state.TotalPoints - t.state.CompletedPoints
	t.state.EstimatedRemaining = avg * time.Duration(remaining)

	return t.state
}

func (t *tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Running = false
	t.state.EstimatedRemaining = 0
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}
