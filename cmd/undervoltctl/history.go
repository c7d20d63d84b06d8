package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/telemetry"
	"github.com/spf13/cobra"
)

func (a *app) newHistoryCommand() *cobra.Command {
	var (
		coreID int
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recorded stability tests of a core",
		GroupID: gResults,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := telemetry.History(cmd.Context(), a.cfg.Telemetry, coreID, limit, logger.Default().With("telemetry"))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN\tFREQ\tOFFSET\tRESULT\tMAX TEMP\tDURATION")
			for i := range records {
				r := &records[i]
				fmt.Fprintf(w, "%s\t%.8s\t%d MHz\t%d mV\t%s\t%.1f°C\t%s\n",
					r.Timestamp.Format(time.DateTime), r.RunID,
					r.FrequencyMHz, r.VoltageMV, verdict(r.Passed, r.TemperatureAbort, r.TimedOut),
					r.MaxTemperature, r.Duration.Round(time.Second),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&coreID, "core", "c", 0, "core to show")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")

	return cmd
}

func verdict(passed, tempAbort, timedOut bool) string {
	switch {
	case tempAbort:
		return "temperature"
	case timedOut:
		return "timeout"
	case passed:
		return "stable"
	default:
		return "unstable"
	}
}
