package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/checkpoint"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/pid"
	"codeberg.org/mutker/undervoltctl/internal/platform"
	"codeberg.org/mutker/undervoltctl/internal/sweep"
	"codeberg.org/mutker/undervoltctl/internal/telemetry"
	"github.com/spf13/cobra"
)

func (a *app) newSweepCommand() *cobra.Command {
	var (
		coreID int
		output string
	)

	cmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Sweep one core and write its frequency-voltage curve",
		GroupID: gSweep,
		Long: `Sweep one core and write its frequency-voltage curve.

The sweep resumes from a compatible checkpoint when one exists. Press Ctrl-C
to stop after the current stability test; the partial curve is still written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = fmt.Sprintf("core%d-curve.json", coreID)
			}
			return a.runSweep(cmd, coreID, output)
		},
	}

	cmd.Flags().IntVarP(&coreID, "core", "c", 0, "core to sweep")
	cmd.Flags().StringVarP(&output, "output", "o", "", "curve output file (default core<N>-curve.json)")

	return cmd
}

func (a *app) runSweep(cmd *cobra.Command, coreID int, output string) error {
	pidPath := a.pidPath
	if pidPath == "" {
		pidPath = pid.DefaultPath()
	}
	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	log := logger.Default()

	store, err := checkpoint.New(a.cfg.Checkpoint, log.With("checkpoint"))
	if err != nil {
		return err
	}
	defer closeLogged(store.Close, "checkpoint store")

	collector, err := telemetry.NewService(a.cfg.Telemetry, log.With("telemetry"))
	if err != nil {
		return err
	}
	defer closeLogged(collector.Close, "telemetry")

	deps := platform.New(a.cfg.Platform, nil, log.With("platform")).Dependencies()
	deps.Checkpoint = store
	deps.Recorder = collector

	o := sweep.New(a.cfg.Sweep, deps,
		sweep.WithLogger(log.With("sweep")),
		sweep.WithProgress(logProgress),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(ctx, o)

	logger.Info().
		Int("core_id", coreID).
		Str("run_id", o.RunID()).
		Str("preset", a.cfg.Preset).
		Dur("estimated", a.cfg.Sweep.EstimatedDuration()).
		Msg("Starting sweep")

	c, runErr := o.Run(ctx, coreID)
	if c == nil {
		return runErr
	}

	if err := c.SaveFile(output); err != nil {
		return err
	}

	data, err := c.MarshalIndent()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if runErr != nil {
		logger.Warn().Str("output", output).Msg("Sweep cancelled, partial curve written")
		return runErr
	}
	logger.Info().Str("output", output).Int("points", len(c.Points)).Msg("Sweep complete")

	return nil
}

func handleSignals(ctx context.Context, o *sweep.Orchestrator) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal. Stopping after the current test...")
		o.Cancel()
	case <-ctx.Done():
	}
}

func logProgress(p sweep.Progress) error {
	logger.Info().
		Int("completed", p.CompletedPoints).
		Int("total", p.TotalPoints).
		Int("frequency_mhz", p.CurrentFrequency).
		Int("voltage_mv", p.CurrentVoltage).
		Str("percent", fmt.Sprintf("%.1f", p.Percent())).
		Dur("remaining", p.EstimatedRemaining.Round(time.Second)).
		Msg("Progress")

	return nil
}

func closeLogged(closeFn func() error, what string) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("error_code", string(errors.CodeOf(err))).Msgf("failed to close %s", what)
	}
}
