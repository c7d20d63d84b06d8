package sweep

import (
	"context"
	"math/rand"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"github.com/google/uuid"
)

// DefaultGovernor is restored when the original governor cannot be read.
const DefaultGovernor = "schedutil"

// Orchestrator runs a frequency sweep for one core. An Orchestrator owns the
// core's governor and voltage offsets for the duration of Run; callers must
// not run two sweeps against the same hardware concurrently.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	log            logger.Logger
	onProgress     ProgressFunc
	rng            *rand.Rand
	sampleInterval time.Duration
	timeoutMargin  time.Duration
	now            func() time.Time
	runID          string

	cancelled atomic.Bool
	progress  *tracker
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithRand sets the random source used to pick verification samples.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithSampleInterval sets the temperature sampling interval.
func WithSampleInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.sampleInterval = d }
}

// WithTimeoutMargin sets how long a probe may overrun the test duration
// before it is considered hung.
func WithTimeoutMargin(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeoutMargin = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID sets the run identifier attached to test records.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// New creates an Orchestrator. The configuration is validated by Run.
func New(cfg Config, deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:            cfg,
		deps:           deps,
		log:            logger.Default().With("sweep"),
		sampleInterval: defaultSampleInterval,
		timeoutMargin:  probeTimeoutMargin,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.now().UnixNano()))
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	o.progress = newTracker(o.now)

	return o
}

// Cancel asks a running sweep to stop. It takes effect at the next loop
// boundary, so at most one in-flight stability test (test duration plus the
// timeout margin) completes first.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Progress returns a snapshot of the current progress.
func (o *Orchestrator) Progress() Progress {
	return o.progress.snapshot()
}

// RunID identifies this orchestrator's run in logs and test records.
func (o *Orchestrator) RunID() string {
	return o.runID
}

func (o *Orchestrator) isCancelled(ctx context.Context) bool {
	return o.cancelled.Load() || ctx.Err() != nil
}

// Run sweeps the configured frequency range on coreID. A configuration error
// is returned before any hardware is touched. When cancelled, Run returns the
// partial curve together with ErrRunCancelled; the curve is nil only if no
// point was completed. The governor and voltage offsets are restored once and
// the points gathered so far are checkpointed, on every path after validation.
func (o *Orchestrator) Run(ctx context.Context, coreID int) (*curve.Curve, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	freqs := o.cfg.Frequencies()
	points := o.resume(ctx, coreID, freqs)
	remaining := pending(freqs, points)

	o.progress.start(len(freqs), len(points))
	defer o.progress.stop()

	o.log.Info().
		Int("core_id", coreID).
		Str("run_id", o.runID).
		Int("total", len(freqs)).
		Int("resumed", len(points)).
		Msg("Starting frequency sweep")

	governor := o.currentGovernor(ctx, coreID)
	defer func() {
		o.restore(ctx, coreID, governor)
		if len(points) > 0 {
			o.checkpoint(ctx, coreID, points)
		}
	}()

	tester := o.newTester()
	test := func(ctx context.Context, freq, voltage int) bool {
		o.progress.testing(freq, voltage)
		return tester.test(ctx, coreID, freq, voltage, o.cfg.TestDuration)
	}

	search := &voltageSearch{
		start:     o.cfg.VoltageStart,
		step:      o.cfg.VoltageStep,
		margin:    o.cfg.SafetyMargin,
		cancelled: func() bool { return o.isCancelled(ctx) },
	}
	stepper := newAdaptiveStepper(o.cfg.FreqStep)

	cancelled := false
	sinceSave := 0

	for cursor := 0; cursor < len(remaining); {
		if o.isCancelled(ctx) {
			cancelled = true
			break
		}

		freq := remaining[cursor]
		res := search.run(ctx, func(ctx context.Context, voltage int) bool {
			return test(ctx, freq, voltage)
		})
		if res.cancelled {
			// An interrupted search is retested on resume.
			cancelled = true
			break
		}

		point := o.point(freq, res)
		points = append(points, point)

		next := cursor + 1
		if res.stable && o.cfg.AdaptiveStep {
			next = nextIndex(remaining, cursor, stepper.observe(point.VoltageMV))
		}

		if skipped := next - cursor - 1; skipped > 0 {
			o.log.Debug().
				Int("frequency_mhz", freq).
				Int("skipped", skipped).
				Msg("Stable region, widening frequency step")
		}

		o.notify(o.progress.complete(next - cursor - 1))

		sinceSave++
		if sinceSave >= o.cfg.SaveInterval {
			o.checkpoint(ctx, coreID, points)
			sinceSave = 0
		}

		cursor = next
	}

	if len(points) == 0 {
		return nil, ErrRunCancelled
	}

	result := curve.New(coreID, sorted(points), o.cfg.Encode())
	if err := result.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidCurve, err)
	}

	if cancelled {
		o.log.Warn().
			Int("core_id", coreID).
			Int("completed", len(result.Points)).
			Int("total", len(freqs)).
			Msg("Sweep cancelled, returning partial curve")
		return result, ErrRunCancelled
	}

	o.verify(ctx, tester, coreID, result)

	o.log.Info().
		Int("core_id", coreID).
		Int("points", len(result.Points)).
		Int("stable", len(result.Stable())).
		Msg("Frequency sweep completed")

	return result, nil
}

func (o *Orchestrator) newTester() *stabilityTester {
	return &stabilityTester{
		runID: o.runID,
		probe: o.deps.Probe,
		monitor: &safetyMonitor{
			probe:    o.deps.Probe,
			voltage:  o.deps.Voltage,
			interval: o.sampleInterval,
			limit:    TemperatureLimit,
			log:      o.log,
		},
		recorder: o.deps.Recorder,
		margin:   o.timeoutMargin,
		now:      o.now,
		log:      o.log,
	}
}

func (o *Orchestrator) point(freq int, res searchResult) curve.FrequencyPoint {
	if !res.stable {
		o.log.Warn().
			Int("frequency_mhz", freq).
			Int("tests", res.tests).
			Msg("No stable voltage found, marking frequency unstable")
		return curve.NewPoint(freq, 0, false, 0)
	}

	o.log.Info().
		Int("frequency_mhz", freq).
		Int("voltage_mv", res.voltage).
		Int("tests", res.tests).
		Msg("Frequency point stable")

	return curve.NewPoint(freq, res.voltage, true, o.cfg.TestDuration)
}

func (o *Orchestrator) notify(p Progress) {
	if o.onProgress == nil {
		return
	}
	if err := o.onProgress(p); err != nil {
		o.log.Warn().Err(err).Msg("Progress callback failed")
	}
}

func (o *Orchestrator) currentGovernor(ctx context.Context, coreID int) string {
	if o.deps.Governor == nil {
		return DefaultGovernor
	}

	name, err := o.deps.Governor.CurrentGovernor(ctx, coreID)
	if err != nil || name == "" {
		o.log.Warn().Err(err).
			Int("core_id", coreID).
			Str("fallback", DefaultGovernor).
			Msg("Failed to read current governor")
		return DefaultGovernor
	}

	return name
}

// restore puts the governor back and clears all voltage offsets. Failures are
// logged and never replace the run's result.
func (o *Orchestrator) restore(ctx context.Context, coreID int, governor string) {
	ctx = context.WithoutCancel(ctx)

	if o.deps.Governor != nil {
		if err := o.deps.Governor.RestoreGovernor(ctx, coreID, governor); err != nil {
			o.log.Error().Err(err).
				Int("core_id", coreID).
				Str("governor", governor).
				Msg("Failed to restore governor")
		}
	}

	if o.deps.Voltage != nil {
		if err := o.deps.Voltage.ApplyOffsets(ctx, [4]int{}); err != nil {
			o.log.Error().Err(err).Int("core_id", coreID).Msg("Failed to reset voltage offsets")
		}
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, coreID int, points []curve.FrequencyPoint) {
	if o.deps.Checkpoint == nil {
		return
	}

	c := curve.New(coreID, sorted(points), o.cfg.Encode())
	if err := o.deps.Checkpoint.Save(context.WithoutCancel(ctx), c); err != nil {
		o.log.Warn().Err(err).Int("core_id", coreID).Msg("Failed to save checkpoint")
		return
	}

	o.log.Debug().Int("core_id", coreID).Int("points", len(points)).Msg("Checkpoint saved")
}

// resume loads the checkpoint for coreID and returns its points if they are
// compatible with this run's configuration.
func (o *Orchestrator) resume(ctx context.Context, coreID int, freqs []int) []curve.FrequencyPoint {
	if o.deps.Checkpoint == nil {
		return nil
	}

	stored, err := o.deps.Checkpoint.Load(ctx, coreID)
	if err != nil {
		o.log.Warn().Err(err).Int("core_id", coreID).Msg("Failed to load checkpoint, starting fresh")
		return nil
	}
	if stored == nil || stored.CoreID != coreID {
		return nil
	}

	if reason := o.incompatible(stored, freqs); reason != "" {
		o.log.Warn().
			Int("core_id", coreID).
			Str("reason", reason).
			Msg("Discarding checkpoint from a different configuration")
		return nil
	}

	o.log.Info().
		Int("core_id", coreID).
		Int("points", len(stored.Points)).
		Msg("Resuming from checkpoint")

	return slices.Clone(stored.Points)
}

func (o *Orchestrator) incompatible(stored *curve.Curve, freqs []int) string {
	snapshot, err := DecodeConfig(stored.WizardConfig)
	if err != nil {
		return err.Error()
	}

	// A checkpoint without a configuration snapshot is judged on its points.
	if snapshot != (Config{}) {
		if fields := o.cfg.Mismatches(snapshot); len(fields) > 0 {
			return "changed " + strings.Join(fields, ", ")
		}
	}

	for _, p := range stored.Points {
		if _, ok := slices.BinarySearch(freqs, p.FrequencyMHz); !ok {
			return "frequency not in target list"
		}
	}

	return ""
}

func (o *Orchestrator) verify(ctx context.Context, tester *stabilityTester, coreID int, c *curve.Curve) {
	v := &verifier{
		rng: o.rng,
		test: func(ctx context.Context, freq, voltage int) bool {
			return tester.test(ctx, coreID, freq, voltage, o.cfg.TestDuration)
		},
	}

	res, err := v.verify(ctx, c)
	if err != nil {
		o.log.Warn().Err(err).
			Int("core_id", coreID).
			Int("tested", res.Tested).
			Int("failed", len(res.Failed)).
			Msg("Curve verification failed")
		return
	}

	o.log.Info().Int("core_id", coreID).Int("tested", res.Tested).Msg("Curve verification passed")
}

// pending returns the frequencies in freqs not covered by done.
func pending(freqs []int, done []curve.FrequencyPoint) []int {
	seen := make(map[int]struct{}, len(done))
	for _, p := range done {
		seen[p.FrequencyMHz] = struct{}{}
	}

	out := make([]int, 0, len(freqs))
	for _, f := range freqs {
		if _, ok := seen[f]; !ok {
			out = append(out, f)
		}
	}

	return out
}

func sorted(points []curve.FrequencyPoint) []curve.FrequencyPoint {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b curve.FrequencyPoint) int {
		return a.FrequencyMHz - b.FrequencyMHz
	})

	return out
}
