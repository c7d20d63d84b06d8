package curve_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(freq, voltage int) curve.FrequencyPoint {
	return curve.FrequencyPoint{FrequencyMHz: freq, VoltageMV: voltage, Stable: true, TestDuration: 30, Timestamp: 1700000000.25}
}

func TestVoltageForClampsAndExactPoints(t *testing.T) {
	c := curve.New(0, []curve.FrequencyPoint{point(400, -30), point(800, -10), point(1200, -5)}, nil)

	tests := []struct {
		name string
		freq int
		want int
	}{
		{"below minimum", 200, -30},
		{"at minimum", 400, -30},
		{"exact middle point", 800, -10},
		{"at maximum", 1200, -5},
		{"above maximum", 3500, -5},
		{"midway", 600, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.VoltageFor(tt.freq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVoltageForUsesFloorDivision(t *testing.T) {
	// 20*200/401 = 9.97; a rounded average would give -20.
	c := curve.New(0, []curve.FrequencyPoint{point(400, -30), point(801, -10)}, nil)
	got, err := c.VoltageFor(600)
	require.NoError(t, err)
	assert.Equal(t, -21, got)

	// Negative numerator floors away from zero: -20*1/401 -> -1, not 0.
	down := curve.New(0, []curve.FrequencyPoint{point(400, -10), point(801, -30)}, nil)
	got, err = down.VoltageFor(401)
	require.NoError(t, err)
	assert.Equal(t, -11, got)
}

func TestVoltageForEmptyCurve(t *testing.T) {
	c := &curve.Curve{}
	_, err := c.VoltageFor(1000)
	require.Error(t, err)
	assert.Equal(t, curve.ErrEmptyCurve, errors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		points []curve.FrequencyPoint
		code   errors.ErrorCode
	}{
		{"empty", nil, curve.ErrEmptyCurve},
		{"voltage too low", []curve.FrequencyPoint{point(400, -101)}, curve.ErrVoltageOutOfRange},
		{"voltage positive", []curve.FrequencyPoint{point(400, 1)}, curve.ErrVoltageOutOfRange},
		{"duplicate", []curve.FrequencyPoint{point(400, -10), point(400, -12)}, curve.ErrDuplicateFrequency},
		{"descending", []curve.FrequencyPoint{point(800, -10), point(400, -12)}, curve.ErrNotAscending},
		{"valid", []curve.FrequencyPoint{point(400, -100), point(500, 0)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := curve.New(1, tt.points, nil).Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	cfg := json.RawMessage(`{"freq_start":400,"freq_step":100}`)
	c := curve.New(3, []curve.FrequencyPoint{point(400, -22), point(500, -18), {FrequencyMHz: 600, TestDuration: 0, Timestamp: 1700000001.5}}, cfg)

	data, err := c.Marshal()
	require.NoError(t, err)

	decoded, err := curve.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c.CoreID, decoded.CoreID)
	assert.Equal(t, c.Points, decoded.Points)
	assert.Equal(t, c.CreatedAt, decoded.CreatedAt)
	assert.JSONEq(t, string(cfg), string(decoded.WizardConfig))
}

func TestUnmarshalRejectsCorruptCurve(t *testing.T) {
	_, err := curve.Unmarshal([]byte(`{"core_id":0,"points":[
		{"frequency_mhz":800,"voltage_mv":-10,"stable":true,"test_duration":30,"timestamp":1},
		{"frequency_mhz":400,"voltage_mv":-20,"stable":true,"test_duration":30,"timestamp":2}
	],"created_at":3,"wizard_config":{}}`))
	require.Error(t, err)
	assert.Equal(t, curve.ErrNotAscending, errors.CodeOf(err))

	_, err = curve.Unmarshal([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, curve.ErrDecode, errors.CodeOf(err))
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "core0.json")
	c := curve.New(0, []curve.FrequencyPoint{point(400, -30), point(500, -28)}, nil)

	require.NoError(t, c.SaveFile(path))

	loaded, err := curve.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, c.Points, loaded.Points)
	assert.JSONEq(t, "{}", string(loaded.WizardConfig))

	_, err = curve.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, curve.ErrFileAccess, errors.CodeOf(err))
}

func TestStableAndFrequencies(t *testing.T) {
	unstable := point(500, 0)
	unstable.Stable = false
	c := curve.New(0, []curve.FrequencyPoint{point(400, -30), unstable, point(600, -25)}, nil)

	assert.Equal(t, []int{400, 500, 600}, c.Frequencies())
	assert.Len(t, c.Stable(), 2)
}
