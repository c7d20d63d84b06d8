package config

import (
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/undervoltctl/internal/checkpoint"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/platform"
	"codeberg.org/mutker/undervoltctl/internal/sweep"
	"codeberg.org/mutker/undervoltctl/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = string(LogLevelInfo)
	DefaultPreset   = "balanced"
)

// Config is the application configuration, assembled from undervoltctl.toml,
// UNDERVOLTCTL_* environment variables and command line flags, in increasing
// order of precedence.
type Config struct {
	LogLevel   string
	Preset     string
	Sweep      sweep.Config
	Checkpoint checkpoint.Config
	Telemetry  telemetry.Config
	Platform   platform.Config
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":          "log_level",
	"preset":             "preset",
	"freq-start":         "sweep.freq_start",
	"freq-end":           "sweep.freq_end",
	"freq-step":          "sweep.freq_step",
	"test-duration":      "sweep.test_duration",
	"voltage-start":      "sweep.voltage_start",
	"voltage-step":       "sweep.voltage_step",
	"safety-margin":      "sweep.safety_margin",
	"adaptive-step":      "sweep.adaptive_step",
	"save-interval":      "sweep.save_interval",
	"checkpoint-backend": "checkpoint.backend",
	"checkpoint-path":    "checkpoint.path",
	"telemetry":          "telemetry.enabled",
	"telemetry-db":       "telemetry.db_path",
}

// RegisterFlags defines the flags understood by Load on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("log-level", "l", DefaultLogLevel, "log level (debug, info, warning, error)")
	fs.StringP("preset", "p", DefaultPreset, "sweep preset ("+strings.Join(append(sweep.PresetNames(), PresetCustom), ", ")+")")
	fs.Int("freq-start", 0, "first frequency to test in MHz")
	fs.Int("freq-end", 0, "last frequency to test in MHz")
	fs.Int("freq-step", 0, "frequency step in MHz")
	fs.Int("test-duration", 0, "stability test duration in seconds")
	fs.Int("voltage-start", 0, "most aggressive offset to search from in mV")
	fs.Int("voltage-step", 0, "voltage search resolution in mV")
	fs.Int("safety-margin", 0, "margin added to the last stable offset in mV")
	fs.Bool("adaptive-step", false, "skip frequencies in stable regions")
	fs.Int("save-interval", 0, "points between checkpoints")
	fs.String("checkpoint-backend", checkpoint.BackendFile, "checkpoint backend (file, sqlite)")
	fs.String("checkpoint-path", "", "checkpoint directory or database")
	fs.Bool("telemetry", false, "record every stability test")
	fs.String("telemetry-db", "", "telemetry database path")
}

// Load reads the configuration from all sources and validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix:   defaultEnvPrefix,
		searchPaths: defaultSearchPaths(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	if err := bindFlags(v, o.flags); err != nil {
		return nil, err
	}

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the log level and every component configuration.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if err := c.Sweep.Validate(); err != nil {
		return err
	}

	if err := c.Checkpoint.Validate(); err != nil {
		return err
	}

	return c.Telemetry.Validate()
}

func defaultSearchPaths() []string {
	paths := []string{"/etc"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", defaultConfigName))
	}

	return paths
}

func setDefaults(v *viper.Viper) {
	cp := checkpoint.DefaultConfig()
	tm := telemetry.DefaultConfig()
	pl := platform.DefaultConfig()

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("preset", DefaultPreset)

	// sweep.* has no defaults so that IsSet reports only explicit overrides
	v.SetDefault("checkpoint.backend", cp.Backend)
	v.SetDefault("checkpoint.path", cp.Path)

	v.SetDefault("telemetry.enabled", tm.Enabled)
	v.SetDefault("telemetry.db_path", tm.DBPath)
	v.SetDefault("telemetry.batch_size", tm.BatchSize)
	v.SetDefault("telemetry.flush_interval", tm.FlushInterval)

	v.SetDefault("platform.sysfs_root", pl.SysfsRoot)
	v.SetDefault("platform.ryzenadj_path", pl.RyzenadjPath)
	v.SetDefault("platform.stress_path", pl.StressPath)
	v.SetDefault("platform.temperature_paths", pl.TemperaturePaths)
	v.SetDefault("platform.sudo", pl.Sudo)
}

func readConfigFile(v *viper.Viper, o *options) error {
	errFactory := errors.New()

	v.SetConfigType("toml")
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName(defaultConfigName)
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	errFactory := errors.New()
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	return nil
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel: strings.ToLower(v.GetString("log_level")),
		Preset:   strings.ToLower(v.GetString("preset")),
	}

	sweepCfg, err := sweepConfig(v, cfg.Preset)
	if err != nil {
		return nil, err
	}
	cfg.Sweep = sweepCfg

	cfg.Checkpoint = checkpoint.Config{
		Backend: strings.ToLower(v.GetString("checkpoint.backend")),
		Path:    v.GetString("checkpoint.path"),
	}

	cfg.Telemetry = telemetry.Config{
		Enabled:       v.GetBool("telemetry.enabled"),
		DBPath:        v.GetString("telemetry.db_path"),
		BatchSize:     v.GetInt("telemetry.batch_size"),
		FlushInterval: v.GetDuration("telemetry.flush_interval"),
	}

	cfg.Platform = platform.Config{
		SysfsRoot:        v.GetString("platform.sysfs_root"),
		RyzenadjPath:     v.GetString("platform.ryzenadj_path"),
		StressPath:       v.GetString("platform.stress_path"),
		TemperaturePaths: v.GetStringSlice("platform.temperature_paths"),
		Sudo:             v.GetBool("platform.sudo"),
	}

	return cfg, nil
}

// sweepConfig starts from the named preset (balanced for custom) and applies
// every sweep.* key that was set explicitly.
func sweepConfig(v *viper.Viper, preset string) (sweep.Config, error) {
	base := sweep.DefaultConfig()
	if preset != PresetCustom {
		p, err := sweep.Preset(preset)
		if err != nil {
			return sweep.Config{}, err
		}
		base = p
	}

	ints := map[string]*int{
		"freq_start":    &base.FreqStart,
		"freq_end":      &base.FreqEnd,
		"freq_step":     &base.FreqStep,
		"test_duration": &base.TestDuration,
		"voltage_start": &base.VoltageStart,
		"voltage_step":  &base.VoltageStep,
		"safety_margin": &base.SafetyMargin,
		"save_interval": &base.SaveInterval,
	}
	for key, field := range ints {
		if v.IsSet("sweep." + key) {
			*field = v.GetInt("sweep." + key)
		}
	}

	bools := map[string]*bool{
		"adaptive_step":  &base.AdaptiveStep,
		"parallel_cores": &base.ParallelCores,
	}
	for key, field := range bools {
		if v.IsSet("sweep." + key) {
			*field = v.GetBool("sweep." + key)
		}
	}

	return base, nil
}
