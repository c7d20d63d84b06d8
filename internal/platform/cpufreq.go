package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
)

const (
	defaultSysfsRoot = "/sys/devices/system/cpu"

	governorUserspace   = "userspace"
	governorPerformance = "performance"

	khzPerMHz = 1000
)

// CPUFreq reads and writes the cpufreq sysfs interface of individual cores.
type CPUFreq struct {
	root string
	log  logger.Logger
}

func NewCPUFreq(root string, log logger.Logger) *CPUFreq {
	if root == "" {
		root = defaultSysfsRoot
	}
	return &CPUFreq{root: root, log: log}
}

func (c *CPUFreq) path(coreID int, file string) string {
	return filepath.Join(c.root, fmt.Sprintf("cpu%d", coreID), "cpufreq", file)
}

func (c *CPUFreq) read(coreID int, file string) (string, error) {
	data, err := os.ReadFile(c.path(coreID, file))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *CPUFreq) write(coreID int, file, value string) error {
	return os.WriteFile(c.path(coreID, file), []byte(value), 0o644)
}

func (c *CPUFreq) readKHz(coreID int, file string) (int, error) {
	s, err := c.read(coreID, file)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (c *CPUFreq) CurrentGovernor(_ context.Context, coreID int) (string, error) {
	gov, err := c.read(coreID, "scaling_governor")
	if err != nil {
		return "", errors.New().Wrap(ErrGovernorReadFailed, err)
	}
	return gov, nil
}

func (c *CPUFreq) AvailableGovernors(coreID int) ([]string, error) {
	s, err := c.read(coreID, "scaling_available_governors")
	if err != nil {
		return nil, errors.New().Wrap(ErrGovernorReadFailed, err)
	}
	return strings.Fields(s), nil
}

// Limits returns the hardware frequency range of a core in MHz.
func (c *CPUFreq) Limits(coreID int) (minMHz, maxMHz int, err error) {
	lo, err := c.readKHz(coreID, "cpuinfo_min_freq")
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrGovernorReadFailed, err)
	}
	hi, err := c.readKHz(coreID, "cpuinfo_max_freq")
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrGovernorReadFailed, err)
	}
	return lo / khzPerMHz, hi / khzPerMHz, nil
}

// LockFrequency pins a core to freqMHz. It prefers the userspace governor and
// falls back to performance with min and max set to the same frequency.
func (c *CPUFreq) LockFrequency(_ context.Context, coreID, freqMHz int) error {
	errFactory := errors.New()

	if lo, hi, err := c.Limits(coreID); err == nil && (freqMHz < lo || freqMHz > hi) {
		return errFactory.WithData(ErrFrequencyRange, struct {
			Frequency int
			Min, Max  int
		}{freqMHz, lo, hi})
	}

	khz := strconv.Itoa(freqMHz * khzPerMHz)

	govs, _ := c.AvailableGovernors(coreID)
	if slices.Contains(govs, governorUserspace) {
		if err := c.write(coreID, "scaling_governor", governorUserspace); err == nil {
			if err := c.write(coreID, "scaling_setspeed", khz); err != nil {
				return errFactory.Wrap(ErrFrequencyLockFailed, err)
			}
			c.log.Debug().Int("core_id", coreID).Int("frequency_mhz", freqMHz).Msg("Frequency locked with userspace governor")
			return nil
		}
	}

	if err := c.write(coreID, "scaling_governor", governorPerformance); err != nil {
		return errFactory.Wrap(ErrFrequencyLockFailed, err)
	}

	// Raise max first when moving up, otherwise lower min first.
	order := []string{"scaling_min_freq", "scaling_max_freq"}
	if cur, err := c.readKHz(coreID, "scaling_max_freq"); err == nil && freqMHz*khzPerMHz > cur {
		order = []string{"scaling_max_freq", "scaling_min_freq"}
	}
	for _, file := range order {
		if err := c.write(coreID, file, khz); err != nil {
			return errFactory.Wrap(ErrFrequencyLockFailed, err)
		}
	}

	c.log.Debug().Int("core_id", coreID).Int("frequency_mhz", freqMHz).Msg("Frequency locked with min/max limits")

	return nil
}

// RestoreGovernor sets governor and reopens the full frequency range.
func (c *CPUFreq) RestoreGovernor(_ context.Context, coreID int, governor string) error {
	errFactory := errors.New()

	if lo, err := c.read(coreID, "cpuinfo_min_freq"); err == nil {
		if hi, err := c.read(coreID, "cpuinfo_max_freq"); err == nil {
			// max first so min never exceeds it
			_ = c.write(coreID, "scaling_max_freq", hi)
			_ = c.write(coreID, "scaling_min_freq", lo)
		}
	}

	if err := c.write(coreID, "scaling_governor", governor); err != nil {
		return errFactory.Wrap(ErrGovernorWriteFailed, err)
	}

	c.log.Debug().Int("core_id", coreID).Str("governor", governor).Msg("Governor restored")

	return nil
}
