package sweep_test

import (
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/sweep"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_ConfigValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("in-range configurations validate", prop.ForAll(
		func(start, span, step, duration, vstart, vstep, margin int) bool {
			cfg := sweep.Config{
				FreqStart:    start,
				FreqEnd:      start + span,
				FreqStep:     step,
				TestDuration: duration,
				VoltageStart: vstart,
				VoltageStep:  vstep,
				SafetyMargin: margin,
				SaveInterval: 1,
			}
			return cfg.Validate() == nil
		},
		gen.IntRange(400, 3500),
		gen.IntRange(1, 1000),
		gen.IntRange(50, 500),
		gen.IntRange(10, 120),
		gen.IntRange(-100, 0),
		gen.IntRange(1, 10),
		gen.IntRange(0, 20),
	))

	properties.Property("out-of-range freq_start is always named", prop.ForAll(
		func(start int) bool {
			cfg := sweep.DefaultConfig()
			cfg.FreqStart = start
			cfg.FreqEnd = start + 100

			for _, f := range sweep.FieldErrors(cfg.Validate()) {
				if f.Field == "freq_start" {
					return true
				}
			}
			return false
		},
		gen.OneGenOf(gen.IntRange(-1000, 399), gen.IntRange(3501, 10000)),
	))

	properties.Property("target frequencies stay inside the configured range", prop.ForAll(
		func(start, span, step int) bool {
			cfg := sweep.Config{FreqStart: start, FreqEnd: start + span, FreqStep: step}
			freqs := cfg.Frequencies()
			if len(freqs) == 0 || freqs[0] != start {
				return false
			}
			for i, f := range freqs {
				if f > cfg.FreqEnd || (i > 0 && f-freqs[i-1] != step) {
					return false
				}
			}
			return cfg.FreqEnd-freqs[len(freqs)-1] < step
		},
		gen.IntRange(400, 3500),
		gen.IntRange(1, 3000),
		gen.IntRange(50, 500),
	))

	properties.TestingRun(t)
}
