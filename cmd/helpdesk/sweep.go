package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) sweepCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Archive old change requests and report escalations periodically",
		Args:  cobra.NoArgs,
		RunE: a.track("sweep", func(cmd *cobra.Command, _ []string) error {
			if once {
				result, err := a.sweeper.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d, escalated %d\n", len(result.Archived), len(result.Escalated))
				return nil
			}
			a.logger.Info("sweeper started", zap.Duration("interval", a.cfg.Policy.SweepInterval()))
			return a.sweeper.Run(cmd.Context())
		}),
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
