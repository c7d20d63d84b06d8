package sweep

import (
	"context"
	"sync"

	"codeberg.org/mutker/undervoltctl/internal/curve"
)

type fakeGovernor struct {
	mu       sync.Mutex
	current  string
	readErr  error
	writeErr error
	restored []string
}

func (g *fakeGovernor) CurrentGovernor(context.Context, int) (string, error) {
	return g.current, g.readErr
}

func (g *fakeGovernor) RestoreGovernor(_ context.Context, _ int, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restored = append(g.restored, name)
	return g.writeErr
}

func (g *fakeGovernor) restores() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.restored...)
}

type fakeVoltage struct {
	mu    sync.Mutex
	err   error
	calls [][4]int
}

func (v *fakeVoltage) ApplyOffsets(_ context.Context, offsets [4]int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, offsets)
	return v.err
}

func (v *fakeVoltage) applied() [][4]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][4]int(nil), v.calls...)
}

type probeCall struct {
	freq    int
	voltage int
}

// fakeProbe is stable when stable(freq, voltage) is true. onRun, if set, runs
// inside each test before the verdict is returned.
type fakeProbe struct {
	mu          sync.Mutex
	stable      func(freq, voltage int) bool
	temperature float64
	onRun       func(ctx context.Context, call int)
	// sampled, when set, holds each test until the monitor has taken a reading.
	sampled     chan struct{}
	calls       []probeCall
}

func thresholdProbe(threshold int) *fakeProbe {
	return &fakeProbe{
		stable:      func(_, v int) bool { return v >= threshold },
		temperature: 60,
	}
}

func (p *fakeProbe) RunStabilityTest(ctx context.Context, _, freq, voltage, _ int) (ProbeResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, probeCall{freq: freq, voltage: voltage})
	n := len(p.calls)
	p.mu.Unlock()

	if p.onRun != nil {
		p.onRun(ctx, n)
	}

	if p.sampled != nil {
		select {
		case <-p.sampled:
		case <-ctx.Done():
			return ProbeResult{}, ctx.Err()
		}
	}

	return ProbeResult{Passed: p.stable(freq, voltage)}, nil
}

func (p *fakeProbe) SampleMetrics() (Metrics, error) {
	if p.sampled != nil {
		select {
		case p.sampled <- struct{}{}:
		default:
		}
	}
	return Metrics{Temperature: p.temperature}, nil
}

func (p *fakeProbe) recorded() []probeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]probeCall(nil), p.calls...)
}

// hotProbe serves temperatures in order and only lets the workload finish
// once a reading at or above the limit has been handed out.
type hotProbe struct {
	mu      sync.Mutex
	temps   []float64
	served  int
	hot     chan struct{}
	hotOnce sync.Once
}

func newHotProbe(temps ...float64) *hotProbe {
	return &hotProbe{temps: temps, hot: make(chan struct{})}
}

func (p *hotProbe) RunStabilityTest(ctx context.Context, _, _, _, _ int) (ProbeResult, error) {
	select {
	case <-p.hot:
	case <-ctx.Done():
		return ProbeResult{}, ctx.Err()
	}
	return ProbeResult{Passed: true}, nil
}

func (p *hotProbe) SampleMetrics() (Metrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.temps[len(p.temps)-1]
	if p.served < len(p.temps) {
		t = p.temps[p.served]
	}
	p.served++

	if t >= TemperatureLimit {
		p.hotOnce.Do(func() { close(p.hot) })
	}

	return Metrics{Temperature: t}, nil
}

// hungProbe never finishes on its own.
type hungProbe struct{}

func (hungProbe) RunStabilityTest(ctx context.Context, _, _, _, _ int) (ProbeResult, error) {
	<-ctx.Done()
	return ProbeResult{Passed: true}, nil
}

func (hungProbe) SampleMetrics() (Metrics, error) { return Metrics{Temperature: 50}, nil }

type fakeStore struct {
	mu      sync.Mutex
	loaded  *curve.Curve
	loadErr error
	saved   []*curve.Curve
}

func (s *fakeStore) Load(context.Context, int) (*curve.Curve, error) {
	return s.loaded, s.loadErr
}

func (s *fakeStore) Save(_ context.Context, c *curve.Curve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, c)
	return nil
}

func (s *fakeStore) last() *curve.Curve {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*TestRecord
}

func (r *fakeRecorder) Record(_ context.Context, rec *TestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}
