package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/undervoltctl/internal/config"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"github.com/spf13/cobra"
)

var (
	gSweep   = "Sweep:"
	gResults = "Results:"
)

// app carries the state shared by every command.
type app struct {
	configPath string
	pidPath    string
	cfg        *config.Config
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "undervoltctl",
		Short: "undervoltctl finds stable per-frequency CPU undervolt offsets",
		Long: `undervoltctl finds stable per-frequency CPU undervolt offsets.

It sweeps the frequency range of one core, binary searches the most
aggressive stable voltage offset at each frequency and writes the result
as a frequency-voltage curve.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(
				config.WithConfigFile(a.configPath),
				config.WithFlags(cmd.Flags()),
			)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logger.Init(cfg.LogLevel, logger.IsService())
			logger.Debug().Str("preset", cfg.Preset).Msg("Config loaded")

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&a.configPath, "config", "", "config file path")
	globalFlags.StringVar(&a.pidPath, "pid-file", "", "PID file guarding hardware access")
	config.RegisterFlags(globalFlags)

	cmd.AddGroup(
		&cobra.Group{ID: gSweep, Title: gSweep},
		&cobra.Group{ID: gResults, Title: gResults},
	)

	cmd.AddCommand(
		a.newSweepCommand(),
		a.newPresetsCommand(),
		a.newCurveCommand(),
		a.newCheckpointCommand(),
		a.newHistoryCommand(),
	)

	return cmd
}
