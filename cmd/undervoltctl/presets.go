package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/sweep"
	"github.com/spf13/cobra"
)

func (a *app) newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "presets",
		Short:   "List sweep presets and their worst-case run time",
		GroupID: gSweep,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRANGE\tSTEP\tPOINTS\tTEST\tADAPTIVE\tWORST CASE")

			presets := sweep.Presets()
			for _, name := range sweep.PresetNames() {
				p := presets[name]
				marker := ""
				if name == a.cfg.Preset {
					marker = " *"
				}
				fmt.Fprintf(w, "%s%s\t%d-%d MHz\t%d MHz\t%d\t%ds\t%t\t%s\n",
					name, marker,
					p.FreqStart, p.FreqEnd, p.FreqStep,
					len(p.Frequencies()), p.TestDuration, p.AdaptiveStep,
					p.EstimatedDuration().Round(time.Minute),
				)
			}

			return w.Flush()
		},
	}
}
