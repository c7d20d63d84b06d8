package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"golang.org/x/sync/errgroup"
)

// probeTimeoutMargin is added to the test duration to bound a hung probe.
const probeTimeoutMargin = 30 * time.Second

// TestRecord describes one voltage test.
type TestRecord struct {
	RunID            string
	CoreID           int
	FrequencyMHz     int
	VoltageMV        int
	Passed           bool
	TemperatureAbort bool
	TimedOut         bool
	MaxTemperature   float64
	Duration         time.Duration
	Timestamp        time.Time
	Err              string
}

type probeOutcome struct {
	result ProbeResult
	err    error
}

// stabilityTester runs the probe and the safety monitor side by side.
type stabilityTester struct {
	runID    string
	probe    StabilityProbe
	monitor  *safetyMonitor
	recorder TestRecorder
	margin   time.Duration
	now      func() time.Time
	log      logger.Logger
}

// test reports whether the core is stable at frequency/voltage. It is
// intentionally not interruptible by ctx: an in-flight workload always runs
// to completion or to its timeout.
func (t *stabilityTester) test(ctx context.Context, coreID, freq, voltage, duration int) bool {
	started := t.now()

	testCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(duration)*time.Second+t.margin)
	defer cancel()

	var (
		abort     atomic.Bool
		monitored monitorResult
		outcome   probeOutcome
		timedOut  bool
	)

	g, gctx := errgroup.WithContext(testCtx)
	probeDone := make(chan struct{})

	g.Go(func() error {
		defer close(probeDone)

		ch := make(chan probeOutcome, 1)
		go func() {
			res, err := t.probe.RunStabilityTest(gctx, coreID, freq, voltage, duration)
			ch <- probeOutcome{result: res, err: err}
		}()

		select {
		case outcome = <-ch:
		case <-gctx.Done():
			timedOut = true
			outcome = probeOutcome{err: gctx.Err()}
		}

		return nil
	})

	g.Go(func() error {
		monCtx, stop := context.WithCancel(gctx)
		defer stop()
		go func() {
			select {
			case <-probeDone:
				stop()
			case <-monCtx.Done():
			}
		}()
		t.monitor.watch(monCtx, duration, &abort, &monitored)
		return nil
	})

	_ = g.Wait()

	probeErr := outcome.err
	passed := outcome.result.Passed && probeErr == nil && !timedOut

	// The monitor has been joined, so the flag is final here.
	tripped := abort.Load()
	if tripped {
		passed = false
	}

	rec := &TestRecord{
		RunID:            t.runID,
		CoreID:           coreID,
		FrequencyMHz:     freq,
		VoltageMV:        voltage,
		Passed:           passed,
		TemperatureAbort: tripped,
		TimedOut:         timedOut,
		MaxTemperature:   monitored.maxTemperature,
		Duration:         t.now().Sub(started),
		Timestamp:        started,
	}

	ev := t.log.Debug()
	switch {
	case timedOut:
		ev = t.log.Warn()
		rec.Err = errors.New().New(ErrTestTimeout).Error()
	case probeErr != nil:
		ev = t.log.Warn()
		rec.Err = errors.New().Wrap(ErrProbeFailed, probeErr).Error()
	case tripped:
		rec.Err = errors.New().New(ErrTemperatureAbort).Error()
	}
	ev.Int("frequency_mhz", freq).
		Int("voltage_mv", voltage).
		Bool("passed", passed).
		Bool("timed_out", timedOut).
		Bool("temperature_abort", tripped).
		Float64("max_temperature", monitored.maxTemperature).
		Str("error", rec.Err).
		Msg("Stability test finished")

	if t.recorder != nil {
		if err := t.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			t.log.Debug().Err(err).Msg("Failed to record stability test")
		}
	}

	return passed
}
