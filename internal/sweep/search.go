package sweep

import (
	"context"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
)

// maxConsecutiveFailures ends a search and marks the point unstable.
const maxConsecutiveFailures = 3

// stabilityFunc runs one voltage test and reports the verdict.
type stabilityFunc func(ctx context.Context, voltage int) bool

// searchResult is the outcome of one voltage search.
type searchResult struct {
	voltage int
	stable  bool
	tests   int
	// cancelled is set when the search stopped on the cancel flag.
	cancelled bool
}

// voltageSearch bisects [start, 0] for the most negative stable offset.
type voltageSearch struct {
	start     int
	step      int
	margin    int
	cancelled func() bool
}

// run searches for one frequency. Only the consecutive failure limit marks the
// point unstable. A search that narrows to 0 without a passing test settles on
// no undervolt, and a cancelled one reports the best stable value so far.
func (s *voltageSearch) run(ctx context.Context, test stabilityFunc) searchResult {
	best, found, tests, err := s.bisect(ctx, test)

	res := searchResult{tests: tests}
	switch {
	case errors.Is(err, errConsecutiveFailures):
		return res
	case errors.Is(err, ErrRunCancelled):
		res.cancelled = true
		if !found {
			return res
		}
	case !found:
		best = curve.MaxVoltage
	}

	res.voltage = clampVoltage(best + s.margin)
	res.stable = true

	return res
}

func (s *voltageSearch) bisect(ctx context.Context, test stabilityFunc) (best int, found bool, tests int, err error) {
	low, high := s.start, curve.MaxVoltage
	failures := 0

	for high-low > s.step {
		if s.cancelled() {
			return best, found, tests, ErrRunCancelled
		}

		mid := roundToStep(low, high, s.step)
		tests++

		if test(ctx, mid) {
			best, found = mid, true
			high = mid
			failures = 0
			continue
		}

		low = mid
		failures++
		if failures >= maxConsecutiveFailures {
			return 0, false, tests, errConsecutiveFailures
		}
	}

	return best, found, tests, nil
}

// roundToStep returns the midpoint of (low, high) rounded to the nearest
// multiple of step. If rounding lands on a bound the raw midpoint is used, so
// the window always shrinks.
func roundToStep(low, high, step int) int {
	mid := floorDiv(low+high, 2)
	rounded := floorDiv(mid+step/2, step) * step
	if rounded <= low || rounded >= high {
		return mid
	}

	return rounded
}

func clampVoltage(v int) int {
	switch {
	case v < curve.MinVoltage:
		return curve.MinVoltage
	case v > curve.MaxVoltage:
		return curve.MaxVoltage
	default:
		return v
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
