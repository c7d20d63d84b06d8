package main

import (
	"fmt"

	"codeberg.org/mutker/undervoltctl/internal/checkpoint"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"github.com/spf13/cobra"
)

func (a *app) newCheckpointCommand() *cobra.Command {
	var coreID int

	cmd := &cobra.Command{
		Use:     "checkpoint",
		Short:   "Manage sweep checkpoints",
		GroupID: gSweep,
	}
	cmd.PersistentFlags().IntVarP(&coreID, "core", "c", 0, "core whose checkpoint to use")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the checkpoint of a core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := checkpoint.New(a.cfg.Checkpoint, logger.Default().With("checkpoint"))
			if err != nil {
				return err
			}
			defer closeLogged(store.Close, "checkpoint store")

			c, err := store.Load(cmd.Context(), coreID)
			if err != nil {
				return err
			}
			if c == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no checkpoint for core %d\n", coreID)
				return nil
			}

			data, err := c.MarshalIndent()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the checkpoint of a core so the next sweep starts over",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := checkpoint.New(a.cfg.Checkpoint, logger.Default().With("checkpoint"))
			if err != nil {
				return err
			}
			defer closeLogged(store.Close, "checkpoint store")

			if err := store.Delete(cmd.Context(), coreID); err != nil {
				return err
			}
			logger.Info().Int("core_id", coreID).Msg("Checkpoint cleared")

			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)

	return cmd
}
