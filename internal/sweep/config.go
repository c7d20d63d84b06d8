package sweep

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"go.uber.org/multierr"
)

const (
	minFreqStep     = 50
	maxFreqStep     = 500
	minTestDuration = 10
	maxTestDuration = 120
	minVoltageStep  = 1
	maxVoltageStep  = 10
	minSafetyMargin = 0
	maxSafetyMargin = 20
)

// Config governs one sweep. It is validated before any hardware is touched
// and only read afterwards. The JSON form is the checkpoint's wizard_config.
type Config struct {
	FreqStart     int  `json:"freq_start" mapstructure:"freq_start"`
	FreqEnd       int  `json:"freq_end" mapstructure:"freq_end"`
	FreqStep      int  `json:"freq_step" mapstructure:"freq_step"`
	TestDuration  int  `json:"test_duration" mapstructure:"test_duration"`
	VoltageStart  int  `json:"voltage_start" mapstructure:"voltage_start"`
	VoltageStep   int  `json:"voltage_step" mapstructure:"voltage_step"`
	SafetyMargin  int  `json:"safety_margin" mapstructure:"safety_margin"`
	ParallelCores bool `json:"parallel_cores" mapstructure:"parallel_cores"`
	AdaptiveStep  bool `json:"adaptive_step" mapstructure:"adaptive_step"`
	SaveInterval  int  `json:"save_interval" mapstructure:"save_interval"`
}

// DefaultConfig matches the balanced preset.
func DefaultConfig() Config {
	return BalancedPreset()
}

// FieldError describes one out-of-range configuration field.
type FieldError struct {
	Field  string
	Value  int
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s, got %d", e.Field, e.Reason, e.Value)
}

// Validate checks every field and reports all violations in one error with
// code ErrInvalidConfig. Use FieldErrors to inspect them individually.
func (c Config) Validate() error {
	var errs error

	check := func(ok bool, field string, value int, reason string) {
		if !ok {
			errs = multierr.Append(errs, &FieldError{Field: field, Value: value, Reason: reason})
		}
	}

	check(c.FreqStart >= curve.MinFrequency && c.FreqStart <= curve.MaxFrequency,
		"freq_start", c.FreqStart, fmt.Sprintf("must be between %d-%d MHz", curve.MinFrequency, curve.MaxFrequency))
	check(c.FreqEnd > c.FreqStart,
		"freq_end", c.FreqEnd, fmt.Sprintf("must be greater than freq_start (%d)", c.FreqStart))
	check(c.FreqStep >= minFreqStep && c.FreqStep <= maxFreqStep,
		"freq_step", c.FreqStep, fmt.Sprintf("must be between %d-%d MHz", minFreqStep, maxFreqStep))
	check(c.TestDuration >= minTestDuration && c.TestDuration <= maxTestDuration,
		"test_duration", c.TestDuration, fmt.Sprintf("must be between %d-%d seconds", minTestDuration, maxTestDuration))
	check(c.VoltageStart >= curve.MinVoltage && c.VoltageStart <= curve.MaxVoltage,
		"voltage_start", c.VoltageStart, fmt.Sprintf("must be between %d and %d mV", curve.MinVoltage, curve.MaxVoltage))
	check(c.VoltageStep >= minVoltageStep && c.VoltageStep <= maxVoltageStep,
		"voltage_step", c.VoltageStep, fmt.Sprintf("must be between %d-%d mV", minVoltageStep, maxVoltageStep))
	check(c.SafetyMargin >= minSafetyMargin && c.SafetyMargin <= maxSafetyMargin,
		"safety_margin", c.SafetyMargin, fmt.Sprintf("must be between %d-%d mV", minSafetyMargin, maxSafetyMargin))
	check(c.SaveInterval >= 1,
		"save_interval", c.SaveInterval, "must be at least 1")

	if errs == nil {
		return nil
	}

	return errors.New().Wrap(ErrInvalidConfig, errs)
}

// FieldErrors extracts the individual violations from a Validate error.
func FieldErrors(err error) []*FieldError {
	var fields []*FieldError
	for _, e := range multierr.Errors(errors.Unwrap(err)) {
		var fe *FieldError
		if errors.As(e, &fe) {
			fields = append(fields, fe)
		}
	}

	return fields
}

// Frequencies lists freq_start, freq_start+step, ... up to and including
// freq_end when it lies on the grid.
func (c Config) Frequencies() []int {
	if c.FreqStep <= 0 || c.FreqEnd < c.FreqStart {
		return nil
	}

	freqs := make([]int, 0, (c.FreqEnd-c.FreqStart)/c.FreqStep+1)
	for f := c.FreqStart; f <= c.FreqEnd; f += c.FreqStep {
		freqs = append(freqs, f)
	}

	return freqs
}

// SearchIterations is the worst-case number of stability tests one voltage
// search performs.
func (c Config) SearchIterations() int {
	width := -c.VoltageStart
	n := 0
	for width > c.VoltageStep && c.VoltageStep > 0 {
		width /= 2
		n++
	}

	return n
}

// EstimatedDuration is the worst-case run time without adaptive skipping.
func (c Config) EstimatedDuration() time.Duration {
	tests := len(c.Frequencies()) * c.SearchIterations()

	return time.Duration(tests*c.TestDuration) * time.Second
}

// Encode returns the snapshot stored in a curve's wizard_config.
func (c Config) Encode() json.RawMessage {
	data, err := json.Marshal(c)
	if err != nil {
		return json.RawMessage("{}")
	}

	return data
}

// DecodeConfig reads a wizard_config snapshot. Unknown keys are ignored and
// missing keys keep their zero value.
func DecodeConfig(raw json.RawMessage) (Config, error) {
	var c Config
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, errors.New().Wrap(ErrDecodeConfig, err)
	}

	return c, nil
}

// Mismatches lists the fields of stored that would make its points
// meaningless under c: a different frequency grid or voltage search.
// freq_end, test_duration, adaptive_step and save_interval may differ.
func (c Config) Mismatches(stored Config) []string {
	var fields []string
	if c.FreqStart != stored.FreqStart {
		fields = append(fields, "freq_start")
	}
	if c.FreqStep != stored.FreqStep {
		fields = append(fields, "freq_step")
	}
	if c.VoltageStart != stored.VoltageStart {
		fields = append(fields, "voltage_start")
	}
	if c.VoltageStep != stored.VoltageStep {
		fields = append(fields, "voltage_step")
	}
	if c.SafetyMargin != stored.SafetyMargin {
		fields = append(fields, "safety_margin")
	}

	return fields
}

// QuickPreset trades coverage for a short run.
func QuickPreset() Config {
	return Config{
		FreqStart:    400,
		FreqEnd:      3500,
		FreqStep:     200,
		TestDuration: 15,
		VoltageStart: -30,
		VoltageStep:  2,
		SafetyMargin: 5,
		AdaptiveStep: true,
		SaveInterval: 1,
	}
}

// BalancedPreset is the default.
func BalancedPreset() Config {
	return Config{
		FreqStart:    400,
		FreqEnd:      3500,
		FreqStep:     100,
		TestDuration: 30,
		VoltageStart: -30,
		VoltageStep:  2,
		SafetyMargin: 5,
		AdaptiveStep: true,
		SaveInterval: 1,
	}
}

// ThoroughPreset tests every 50 MHz for a minute without skipping.
func ThoroughPreset() Config {
	return Config{
		FreqStart:    400,
		FreqEnd:      3500,
		FreqStep:     50,
		TestDuration: 60,
		VoltageStart: -30,
		VoltageStep:  2,
		SafetyMargin: 5,
		AdaptiveStep: false,
		SaveInterval: 5,
	}
}

var presets = map[string]func() Config{
	"quick":    QuickPreset,
	"balanced": BalancedPreset,
	"thorough": ThoroughPreset,
}

// Preset returns a named preset.
func Preset(name string) (Config, error) {
	p, ok := presets[name]
	if !ok {
		return Config{}, errors.New().WithData(ErrUnknownPreset, name)
	}

	return p(), nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Presets returns every named preset.
func Presets() map[string]Config {
	out := make(map[string]Config, len(presets))
	for name, p := range presets {
		out[name] = p()
	}

	return out
}
