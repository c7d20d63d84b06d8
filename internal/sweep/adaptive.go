package sweep

const (
	historySize        = 5
	similarWindow      = 3
	similarThresholdMV = 2
	maxStepMultiplier  = 3
)

// adaptiveStepper widens the frequency step across regions where the stable
// voltage stops changing.
type adaptiveStepper struct {
	base    int
	history []int
	// streak counts consecutive similar windows; each one widens the step.
	streak int
}

func newAdaptiveStepper(base int) *adaptiveStepper {
	return &adaptiveStepper{base: base, history: make([]int, 0, historySize)}
}

// observe records a stable point's voltage and returns the step to use next.
// Unstable points are never observed, so they leave the history untouched.
func (a *adaptiveStepper) observe(voltage int) int {
	a.history = append(a.history, voltage)
	if len(a.history) > historySize {
		a.history = a.history[1:]
	}

	if !a.similar() {
		a.streak = 0
		return a.base
	}

	a.streak++
	mult := 1 + a.streak
	if mult > maxStepMultiplier {
		mult = maxStepMultiplier
	}

	return a.base * mult
}

func (a *adaptiveStepper) similar() bool {
	if len(a.history) < similarWindow {
		return false
	}

	recent := a.history[len(a.history)-similarWindow:]
	lo, hi := recent[0], recent[0]
	for _, v := range recent[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	return hi-lo <= similarThresholdMV
}

// nextIndex returns the index to test after cursor when the next target is
// freqs[cursor]+step. Frequencies strictly below the target are skipped, but
// the last frequency is never skipped.
func nextIndex(freqs []int, cursor, step int) int {
	target := freqs[cursor] + step
	next := cursor + 1
	for next < len(freqs)-1 && freqs[next] < target {
		next++
	}

	return next
}
