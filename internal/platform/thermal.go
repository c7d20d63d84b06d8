package platform

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"codeberg.org/mutker/undervoltctl/internal/errors"
)

const (
	temperatureWindowSize = 5
	milliDegreesPerDegree = 1000.0
)

// DefaultTemperaturePaths are tried in order when none are configured.
var DefaultTemperaturePaths = []string{
	"/sys/class/hwmon/hwmon*/temp1_input",
	"/sys/class/thermal/thermal_zone0/temp",
}

// Thermal reads CPU temperature from hwmon or thermal zone files, which
// report millidegrees Celsius.
type Thermal struct {
	patterns []string

	mu      sync.Mutex
	sensor  string
	history []float64
}

func NewThermal(patterns []string) *Thermal {
	if len(patterns) == 0 {
		patterns = DefaultTemperaturePaths
	}
	return &Thermal{patterns: patterns}
}

// Read returns the current temperature in °C.
func (t *Thermal) Read() (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sensor != "" {
		if v, err := readMilliDegrees(t.sensor); err == nil {
			t.record(v)
			return v, nil
		}
		t.sensor = ""
	}

	var lastErr error
	for _, pattern := range t.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			lastErr = err
			continue
		}
		for _, path := range matches {
			v, err := readMilliDegrees(path)
			if err != nil {
				lastErr = err
				continue
			}
			t.sensor = path
			t.record(v)
			return v, nil
		}
	}

	if lastErr != nil {
		return 0, errors.New().Wrap(ErrTemperatureReadFailed, lastErr)
	}

	return 0, errors.New().WithData(ErrNoTemperatureSensor, t.patterns)
}

// Average returns the mean of the last few readings.
func (t *Thermal) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range t.history {
		sum += v
	}
	return sum / float64(len(t.history))
}

// Sensor returns the path of the sensor in use, if any.
func (t *Thermal) Sensor() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sensor
}

func (t *Thermal) record(v float64) {
	t.history = append(t.history, v)
	if len(t.history) > temperatureWindowSize {
		t.history = t.history[1:]
	}
}

func readMilliDegrees(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, err
	}
	return v / milliDegreesPerDegree, nil
}
