package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/logger"
)

const (
	// TemperatureLimit trips the safety monitor at or above this value (°C).
	TemperatureLimit = 85.0

	defaultSampleInterval = time.Second
)

// safetyMonitor samples temperature while a stability test runs and resets
// every core's offset when the limit is reached.
type safetyMonitor struct {
	probe    StabilityProbe
	voltage  VoltageActuator
	interval time.Duration
	limit    float64
	log      logger.Logger
}

// monitorResult is only read after the monitor goroutine has been joined.
type monitorResult struct {
	maxTemperature float64
	samples        int
}

// watch takes up to samples readings, one per interval. A reading at or above
// the limit sets abort, issues an emergency reset and ends the watch. Sampling
// errors are logged and skipped.
func (m *safetyMonitor) watch(ctx context.Context, samples int, abort *atomic.Bool, res *monitorResult) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for i := 0; i < samples; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		metrics, err := m.probe.SampleMetrics()
		if err != nil {
			m.log.Debug().Err(err).Msg("temperature sample failed")
			continue
		}

		res.samples++
		if metrics.Temperature > res.maxTemperature {
			res.maxTemperature = metrics.Temperature
		}

		if metrics.Temperature >= m.limit {
			abort.Store(true)
			m.log.Error().
				Float64("temperature", metrics.Temperature).
				Float64("limit", m.limit).
				Msg("Temperature limit reached, resetting voltage offsets")

			// The reset must go out even if the test's context is already done.
			if err := m.voltage.ApplyOffsets(context.WithoutCancel(ctx), [4]int{}); err != nil {
				m.log.Error().Err(err).Msg("Emergency voltage reset failed")
			}

			return
		}
	}
}
