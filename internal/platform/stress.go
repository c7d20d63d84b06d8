package platform

import (
	"context"
	"strconv"
	"strings"

	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/sweep"
)

const defaultStressNG = "stress-ng"

var faultPatterns = []string{"mce", "segfault", "machine check", "hardware error"}

// StressProbe runs stress-ng pinned to one core at a locked frequency and
// voltage offset. Frequency and offsets are restored after every test.
type StressProbe struct {
	stressPath string
	cpufreq    *CPUFreq
	voltage    sweep.VoltageActuator
	thermal    *Thermal
	runner     Runner
	log        logger.Logger
}

func NewStressProbe(stressPath string, cpufreq *CPUFreq, voltage sweep.VoltageActuator, thermal *Thermal, runner Runner, log logger.Logger) *StressProbe {
	if stressPath == "" {
		stressPath = defaultStressNG
	}
	return &StressProbe{
		stressPath: stressPath,
		cpufreq:    cpufreq,
		voltage:    voltage,
		thermal:    thermal,
		runner:     runner,
		log:        log,
	}
}

func (p *StressProbe) RunStabilityTest(ctx context.Context, coreID, freqMHz, voltageMV, durationSec int) (sweep.ProbeResult, error) {
	governor, err := p.cpufreq.CurrentGovernor(ctx, coreID)
	if err != nil {
		governor = sweep.DefaultGovernor
	}

	if err := p.cpufreq.LockFrequency(ctx, coreID, freqMHz); err != nil {
		return sweep.ProbeResult{}, err
	}
	defer func() {
		if err := p.cpufreq.RestoreGovernor(context.WithoutCancel(ctx), coreID, governor); err != nil {
			p.log.Error().Err(err).Int("core_id", coreID).Msg("Failed to restore governor after test")
		}
	}()

	if err := p.voltage.ApplyOffsets(ctx, [4]int{voltageMV, voltageMV, voltageMV, voltageMV}); err != nil {
		return sweep.ProbeResult{}, err
	}
	defer func() {
		if err := p.voltage.ApplyOffsets(context.WithoutCancel(ctx), [4]int{}); err != nil {
			p.log.Error().Err(err).Msg("Failed to reset voltage after test")
		}
	}()

	baseline, _ := p.kernelLog(ctx)

	_, stderr, err := p.runner.Run(ctx, p.stressPath,
		"--cpu", "1",
		"--taskset", strconv.Itoa(coreID),
		"--timeout", strconv.Itoa(durationSec)+"s",
		"--metrics-brief",
	)
	if ctx.Err() != nil {
		return sweep.ProbeResult{}, ctx.Err()
	}
	if err != nil {
		p.log.Debug().Err(err).Str("stderr", stderr).Msg("stress-ng failed")
		return sweep.ProbeResult{Passed: false}, nil
	}

	if faults := p.hardwareFaults(ctx, baseline); len(faults) > 0 {
		p.log.Warn().Strs("faults", faults).Int("core_id", coreID).Msg("Hardware faults reported during test")
		return sweep.ProbeResult{Passed: false}, nil
	}

	return sweep.ProbeResult{Passed: true}, nil
}

// kernelLog returns the non-empty error-level kernel log lines.
func (p *StressProbe) kernelLog(ctx context.Context) ([]string, error) {
	out, _, err := p.runner.Run(ctx, "dmesg", "--level=err,crit,alert,emerg")
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to read kernel log")
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}

// hardwareFaults scans kernel log lines written since baseline for machine
// check and segfault reports. An unreadable log is not treated as a fault.
func (p *StressProbe) hardwareFaults(ctx context.Context, baseline []string) []string {
	lines, err := p.kernelLog(ctx)
	if err != nil {
		return nil
	}

	var faults []string
	for _, line := range newLines(baseline, lines) {
		lower := strings.ToLower(line)
		for _, pattern := range faultPatterns {
			if strings.Contains(lower, pattern) {
				faults = append(faults, line)
				break
			}
		}
	}

	return faults
}

// newLines returns the lines of current that follow the last baseline line.
// When that line is gone the ring buffer has wrapped and all of current is
// new.
func newLines(baseline, current []string) []string {
	if len(baseline) == 0 {
		return current
	}

	last := baseline[len(baseline)-1]
	for i := len(current) - 1; i >= 0; i-- {
		if current[i] == last {
			return current[i+1:]
		}
	}

	return current
}

func (p *StressProbe) SampleMetrics() (sweep.Metrics, error) {
	t, err := p.thermal.Read()
	if err != nil {
		return sweep.Metrics{}, err
	}
	return sweep.Metrics{Temperature: t}, nil
}
