package platform_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout, stderr string
	err            error
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	results  map[string]result
	// sequences answer successive calls in order, repeating the last entry
	sequences map[string][]result
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := strings.Join(append([]string{name}, args...), " ")
	r.commands = append(r.commands, cmd)

	for prefix, seq := range r.sequences {
		if strings.HasPrefix(cmd, prefix) && len(seq) > 0 {
			res := seq[0]
			if len(seq) > 1 {
				r.sequences[prefix] = seq[1:]
			}
			return res.stdout, res.stderr, res.err
		}
	}

	for prefix, res := range r.results {
		if strings.HasPrefix(cmd, prefix) {
			return res.stdout, res.stderr, res.err
		}
	}
	return "", "", nil
}

// fakeSysfs builds cpuN/cpufreq for one core.
func fakeSysfs(t *testing.T, coreID int, governors string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, fmt.Sprintf("cpu%d", coreID), "cpufreq")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	files := map[string]string{
		"scaling_governor":            "schedutil\n",
		"scaling_available_governors": governors + "\n",
		"scaling_setspeed":            "<unsupported>\n",
		"scaling_min_freq":            "400000\n",
		"scaling_max_freq":            "3500000\n",
		"cpuinfo_min_freq":            "400000\n",
		"cpuinfo_max_freq":            "3500000\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return root
}

func readSysfs(t *testing.T, root string, coreID int, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, fmt.Sprintf("cpu%d", coreID), "cpufreq", file))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestCPUFreq_Governor(t *testing.T) {
	root := fakeSysfs(t, 2, "performance schedutil")
	c := platform.NewCPUFreq(root, logger.Nop())
	ctx := context.Background()

	gov, err := c.CurrentGovernor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "schedutil", gov)

	_, err = c.CurrentGovernor(ctx, 5)
	assert.True(t, errors.HasCode(err, platform.ErrGovernorReadFailed))

	lo, hi, err := c.Limits(2)
	require.NoError(t, err)
	assert.Equal(t, 400, lo)
	assert.Equal(t, 3500, hi)
}

func TestCPUFreq_LockWithUserspace(t *testing.T) {
	root := fakeSysfs(t, 0, "performance schedutil userspace")
	c := platform.NewCPUFreq(root, logger.Nop())

	require.NoError(t, c.LockFrequency(context.Background(), 0, 1200))
	assert.Equal(t, "userspace", readSysfs(t, root, 0, "scaling_governor"))
	assert.Equal(t, "1200000", readSysfs(t, root, 0, "scaling_setspeed"))
}

func TestCPUFreq_LockFallsBackToPerformance(t *testing.T) {
	root := fakeSysfs(t, 0, "performance schedutil")
	c := platform.NewCPUFreq(root, logger.Nop())

	require.NoError(t, c.LockFrequency(context.Background(), 0, 1600))
	assert.Equal(t, "performance", readSysfs(t, root, 0, "scaling_governor"))
	assert.Equal(t, "1600000", readSysfs(t, root, 0, "scaling_min_freq"))
	assert.Equal(t, "1600000", readSysfs(t, root, 0, "scaling_max_freq"))
}

func TestCPUFreq_LockRejectsOutOfRange(t *testing.T) {
	root := fakeSysfs(t, 0, "userspace")
	c := platform.NewCPUFreq(root, logger.Nop())

	err := c.LockFrequency(context.Background(), 0, 4000)
	assert.True(t, errors.HasCode(err, platform.ErrFrequencyRange))
}

func TestCPUFreq_Restore(t *testing.T) {
	root := fakeSysfs(t, 0, "performance schedutil")
	c := platform.NewCPUFreq(root, logger.Nop())
	ctx := context.Background()

	require.NoError(t, c.LockFrequency(ctx, 0, 1000))
	require.NoError(t, c.RestoreGovernor(ctx, 0, "schedutil"))

	assert.Equal(t, "schedutil", readSysfs(t, root, 0, "scaling_governor"))
	assert.Equal(t, "400000", readSysfs(t, root, 0, "scaling_min_freq"))
	assert.Equal(t, "3500000", readSysfs(t, root, 0, "scaling_max_freq"))
}

func TestThermal(t *testing.T) {
	dir := t.TempDir()
	sensor := filepath.Join(dir, "hwmon3", "temp1_input")
	require.NoError(t, os.MkdirAll(filepath.Dir(sensor), 0o755))
	require.NoError(t, os.WriteFile(sensor, []byte("72500\n"), 0o644))

	th := platform.NewThermal([]string{filepath.Join(dir, "missing"), filepath.Join(dir, "hwmon*", "temp1_input")})

	v, err := th.Read()
	require.NoError(t, err)
	assert.Equal(t, 72.5, v)
	assert.Equal(t, sensor, th.Sensor())

	require.NoError(t, os.WriteFile(sensor, []byte("80500\n"), 0o644))
	_, err = th.Read()
	require.NoError(t, err)
	assert.Equal(t, 76.5, th.Average())
}

func TestThermal_NoSensor(t *testing.T) {
	th := platform.NewThermal([]string{filepath.Join(t.TempDir(), "none*")})
	_, err := th.Read()
	assert.True(t, errors.HasCode(err, platform.ErrNoTemperatureSensor))
}

func TestCoperValue(t *testing.T) {
	assert.Equal(t, "0XFFFE2", platform.CoperValue(0, -30))
	assert.Equal(t, "0X1FFFE2", platform.CoperValue(1, -30))
	assert.Equal(t, "0X300000", platform.CoperValue(3, 0))
	assert.Equal(t, "0X0", platform.CoperValue(0, 0))
}

func TestRyzenadj_ApplyOffsets(t *testing.T) {
	runner := &fakeRunner{}
	r := platform.NewRyzenadj("/opt/ryzenadj", true, runner, logger.Nop())

	require.NoError(t, r.ApplyOffsets(context.Background(), [4]int{-30, -30, -30, -30}))
	assert.Equal(t, []string{
		"sudo /opt/ryzenadj --set-coper=0XFFFE2",
		"sudo /opt/ryzenadj --set-coper=0X1FFFE2",
		"sudo /opt/ryzenadj --set-coper=0X2FFFE2",
		"sudo /opt/ryzenadj --set-coper=0X3FFFE2",
	}, runner.commands)
}

func TestRyzenadj_Failures(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]result
		offsets [4]int
		code    errors.ErrorCode
		calls   int
	}{
		{
			name:    "exit status stops at the failing core",
			results: map[string]result{"ryzenadj --set-coper=0X1": {stderr: "SMU busy", err: fmt.Errorf("exit status 1")}},
			offsets: [4]int{-10, -10, -10, -10},
			code:    platform.ErrVoltageApplyFailed,
			calls:   2,
		},
		{
			name:    "error on stderr with exit status 0",
			results: map[string]result{"ryzenadj": {stderr: "Error: unable to init access"}},
			offsets: [4]int{-10, -10, -10, -10},
			code:    platform.ErrVoltageApplyFailed,
			calls:   1,
		},
		{
			name:    "out of range offset",
			offsets: [4]int{-10, -120, 0, 0},
			code:    platform.ErrInvalidOffsets,
			calls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{results: tt.results}
			r := platform.NewRyzenadj("", false, runner, logger.Nop())

			err := r.ApplyOffsets(context.Background(), tt.offsets)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.Len(t, runner.commands, tt.calls)
		})
	}
}

func newProbe(t *testing.T, runner *fakeRunner) (*platform.StressProbe, string) {
	t.Helper()
	root := fakeSysfs(t, 1, "performance schedutil userspace")

	sensor := filepath.Join(t.TempDir(), "temp1_input")
	require.NoError(t, os.WriteFile(sensor, []byte("65000"), 0o644))

	p := platform.New(platform.Config{
		SysfsRoot:        root,
		RyzenadjPath:     "ryzenadj",
		StressPath:       "stress-ng",
		TemperaturePaths: []string{sensor},
	}, runner, logger.Nop())

	return p.Probe, root
}

func TestStressProbe_Pass(t *testing.T) {
	runner := &fakeRunner{}
	probe, root := newProbe(t, runner)

	res, err := probe.RunStabilityTest(context.Background(), 1, 1400, -20, 30)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	assert.Contains(t, runner.commands, "ryzenadj --set-coper=0XFFFEC")
	assert.Contains(t, runner.commands, "stress-ng --cpu 1 --taskset 1 --timeout 30s --metrics-brief")
	assert.Equal(t, "ryzenadj --set-coper=0X300000", runner.commands[len(runner.commands)-1], "offsets reset after the test")
	assert.Equal(t, "schedutil", readSysfs(t, root, 1, "scaling_governor"))

	m, err := probe.SampleMetrics()
	require.NoError(t, err)
	assert.Equal(t, 65.0, m.Temperature)
}

const bootFault = "[   12.3] mce: [Hardware Error]: CPU 1: Machine Check: 0 Bank 5\n"

func TestStressProbe_Failures(t *testing.T) {
	tests := []struct {
		name      string
		results   map[string]result
		sequences map[string][]result
	}{
		{
			name:    "stress-ng exits non-zero",
			results: map[string]result{"stress-ng": {err: fmt.Errorf("exit status 2")}},
		},
		{
			name: "machine check during the test",
			sequences: map[string][]result{"dmesg": {
				{stdout: ""},
				{stdout: "[ 812.4] mce: [Hardware Error]: CPU 1: Machine Check\n"},
			}},
		},
		{
			name: "new fault after older ones",
			sequences: map[string][]result{"dmesg": {
				{stdout: bootFault},
				{stdout: bootFault + "[ 812.4] traps: stress-ng[4242] general protection fault\n[ 812.5] stress-ng[4242]: segfault at 0\n"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, _ := newProbe(t, &fakeRunner{results: tt.results, sequences: tt.sequences})

			res, err := probe.RunStabilityTest(context.Background(), 1, 1400, -20, 30)
			require.NoError(t, err)
			assert.False(t, res.Passed)
		})
	}
}

func TestStressProbe_IgnoresFaultsLoggedBeforeTheTest(t *testing.T) {
	tests := []struct {
		name string
		log  []result
	}{
		{"unchanged log", []result{{stdout: bootFault}, {stdout: bootFault}}},
		{"unrelated new line", []result{{stdout: bootFault}, {stdout: bootFault + "[ 812.4] usb 1-2: device descriptor read error\n"}}},
		{"log unreadable after the test", []result{{stdout: bootFault}, {err: fmt.Errorf("operation not permitted")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{sequences: map[string][]result{"dmesg": tt.log}}
			probe, _ := newProbe(t, runner)

			for i := 0; i < 2; i++ {
				res, err := probe.RunStabilityTest(context.Background(), 1, 1400, -20, 30)
				require.NoError(t, err)
				assert.True(t, res.Passed, "run %d", i)
			}
		})
	}
}

func TestStressProbe_VoltageFailure(t *testing.T) {
	runner := &fakeRunner{results: map[string]result{"ryzenadj --set-coper=0XFFFEC": {err: fmt.Errorf("exit status 1")}}}
	probe, _ := newProbe(t, runner)

	_, err := probe.RunStabilityTest(context.Background(), 1, 1400, -20, 30)
	assert.True(t, errors.HasCode(err, platform.ErrVoltageApplyFailed))
	for _, cmd := range runner.commands {
		assert.NotContains(t, cmd, "stress-ng")
	}
}
