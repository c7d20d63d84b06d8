package main

import (
	"fmt"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"github.com/spf13/cobra"
)

func (a *app) newCurveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "curve",
		Short:   "Inspect a frequency-voltage curve",
		GroupID: gResults,
	}

	cmd.AddCommand(
		newCurveShowCommand(),
		newCurveQueryCommand(),
	)

	return cmd
}

func newCurveShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show FILE",
		Short: "Print a curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := curve.LoadFile(args[0])
			if err != nil {
				return err
			}

			data, err := c.MarshalIndent()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return nil
		},
	}
}

func newCurveQueryCommand() *cobra.Command {
	var freq int

	cmd := &cobra.Command{
		Use:   "query FILE",
		Short: "Print the interpolated voltage offset for a frequency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := curve.LoadFile(args[0])
			if err != nil {
				return err
			}

			v, err := c.VoltageFor(freq)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d MHz: %d mV\n", freq, v)

			return nil
		},
	}

	cmd.Flags().IntVarP(&freq, "freq", "f", 0, "frequency in MHz")
	_ = cmd.MarkFlagRequired("freq")

	return cmd
}
