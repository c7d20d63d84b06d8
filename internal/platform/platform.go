// Package platform drives Linux hardware for a sweep: cpufreq sysfs for the
// governor and frequency lock, hwmon for temperature, ryzenadj for voltage
// offsets and stress-ng as the stability workload.
package platform

import (
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/sweep"
)

type Config struct {
	SysfsRoot        string
	RyzenadjPath     string
	StressPath       string
	TemperaturePaths []string
	Sudo             bool
}

func DefaultConfig() Config {
	return Config{
		SysfsRoot:        defaultSysfsRoot,
		RyzenadjPath:     defaultRyzenadj,
		StressPath:       defaultStressNG,
		TemperaturePaths: DefaultTemperaturePaths,
		Sudo:             true,
	}
}

// Platform bundles the adapters for one machine.
type Platform struct {
	CPUFreq *CPUFreq
	Thermal *Thermal
	Voltage *Ryzenadj
	Probe   *StressProbe
}

func New(cfg Config, runner Runner, log logger.Logger) *Platform {
	if runner == nil {
		runner = ExecRunner()
	}

	cpufreq := NewCPUFreq(cfg.SysfsRoot, log)
	thermal := NewThermal(cfg.TemperaturePaths)
	voltage := NewRyzenadj(cfg.RyzenadjPath, cfg.Sudo, runner, log)

	return &Platform{
		CPUFreq: cpufreq,
		Thermal: thermal,
		Voltage: voltage,
		Probe:   NewStressProbe(cfg.StressPath, cpufreq, voltage, thermal, runner, log),
	}
}

// Dependencies wires the adapters into a sweep.
func (p *Platform) Dependencies() sweep.Dependencies {
	return sweep.Dependencies{
		Governor: p.CPUFreq,
		Probe:    p.Probe,
		Voltage:  p.Voltage,
	}
}
