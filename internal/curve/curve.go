// Package curve holds the frequency to voltage-offset mapping produced by a
// sweep and the interpolation used to pick an offset for any frequency.
package curve

import (
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
)

const (
	MinVoltage   = -100
	MaxVoltage   = 0
	MinFrequency = 400
	MaxFrequency = 3500
)

// FrequencyPoint is one tested frequency. Voltage is an offset in mV, 0 means
// no undervolt and more negative is more aggressive.
type FrequencyPoint struct {
	FrequencyMHz int     `json:"frequency_mhz"`
	VoltageMV    int     `json:"voltage_mv"`
	Stable       bool    `json:"stable"`
	TestDuration int     `json:"test_duration"`
	Timestamp    float64 `json:"timestamp"`
}

// NewPoint stamps a point with the current time.
func NewPoint(freqMHz, voltageMV int, stable bool, testDuration int) FrequencyPoint {
	return FrequencyPoint{
		FrequencyMHz: freqMHz,
		VoltageMV:    voltageMV,
		Stable:       stable,
		TestDuration: testDuration,
		Timestamp:    unixSeconds(time.Now()),
	}
}

// Curve is an ordered set of points for one core together with the sweep
// configuration that produced it.
type Curve struct {
	CoreID       int              `json:"core_id"`
	Points       []FrequencyPoint `json:"points"`
	CreatedAt    float64          `json:"created_at"`
	WizardConfig json.RawMessage  `json:"wizard_config"`
}

// New builds a curve from points and an encoded configuration snapshot. The
// slice is copied; the result is not validated.
func New(coreID int, points []FrequencyPoint, config json.RawMessage) *Curve {
	if len(config) == 0 {
		config = emptyConfig()
	}

	return &Curve{
		CoreID:       coreID,
		Points:       append([]FrequencyPoint(nil), points...),
		CreatedAt:    unixSeconds(time.Now()),
		WizardConfig: config,
	}
}

// Validate reports the first violated invariant: empty curve, voltage outside
// [-100, 0], duplicate or descending frequencies.
func (c *Curve) Validate() error {
	errFactory := errors.New()

	if len(c.Points) == 0 {
		return errFactory.WithMessage(ErrEmptyCurve, "curve has no points")
	}

	for _, p := range c.Points {
		if p.VoltageMV < MinVoltage || p.VoltageMV > MaxVoltage {
			return errFactory.WithMessage(ErrVoltageOutOfRange, fmt.Sprintf(
				"voltage %d mV at %d MHz is outside valid range [%d, %d] mV",
				p.VoltageMV, p.FrequencyMHz, MinVoltage, MaxVoltage))
		}
	}

	for i := 0; i < len(c.Points)-1; i++ {
		cur, next := c.Points[i].FrequencyMHz, c.Points[i+1].FrequencyMHz
		switch {
		case cur == next:
			return errFactory.WithMessage(ErrDuplicateFrequency,
				fmt.Sprintf("duplicate frequency %d MHz found in curve", cur))
		case cur > next:
			return errFactory.WithMessage(ErrNotAscending,
				fmt.Sprintf("frequencies not in ascending order: %d MHz followed by %d MHz", cur, next))
		}
	}

	return nil
}

// VoltageFor returns the offset for freqMHz. Frequencies outside the tested
// range clamp to the nearest endpoint. Between two points the offset is
// v1 + ((v2-v1)*(f-f1)) floordiv (f2-f1); the floor rounding is part of the
// persisted-curve contract and must not change.
func (c *Curve) VoltageFor(freqMHz int) (int, error) {
	if len(c.Points) == 0 {
		return 0, errors.New().WithMessage(ErrEmptyCurve, "cannot interpolate voltage from empty curve")
	}

	first, last := c.Points[0], c.Points[len(c.Points)-1]
	if freqMHz <= first.FrequencyMHz {
		return first.VoltageMV, nil
	}
	if freqMHz >= last.FrequencyMHz {
		return last.VoltageMV, nil
	}

	for i := 0; i < len(c.Points)-1; i++ {
		p1, p2 := c.Points[i], c.Points[i+1]
		if freqMHz < p1.FrequencyMHz || freqMHz > p2.FrequencyMHz {
			continue
		}

		span := p2.FrequencyMHz - p1.FrequencyMHz
		if span == 0 {
			return p1.VoltageMV, nil
		}

		return p1.VoltageMV + floorDiv((p2.VoltageMV-p1.VoltageMV)*(freqMHz-p1.FrequencyMHz), span), nil
	}

	return 0, errors.New().WithMessage(ErrNotAscending,
		fmt.Sprintf("failed to interpolate voltage for frequency %d MHz", freqMHz))
}

// Stable returns the points that passed their stability search.
func (c *Curve) Stable() []FrequencyPoint {
	stable := make([]FrequencyPoint, 0, len(c.Points))
	for _, p := range c.Points {
		if p.Stable {
			stable = append(stable, p)
		}
	}

	return stable
}

// Frequencies returns the tested frequencies in curve order.
func (c *Curve) Frequencies() []int {
	freqs := make([]int, len(c.Points))
	for i, p := range c.Points {
		freqs[i] = p.FrequencyMHz
	}

	return freqs
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func emptyConfig() json.RawMessage {
	return json.RawMessage("{}")
}
