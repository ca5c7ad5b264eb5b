package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Read-only summaries",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "monthly",
			Short: "Resolved and reopened tickets per month",
			Args:  cobra.NoArgs,
			RunE: a.track("reports.monthly", func(cmd *cobra.Command, _ []string) error {
				report, err := a.reports.MonthlyReport(cmd.Context())
				if err != nil {
					return err
				}
				writeMonthly(cmd.OutOrStdout(), report)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ratings",
			Short: "Requester ratings per agent",
			Args:  cobra.NoArgs,
			RunE: a.track("reports.ratings", func(cmd *cobra.Command, _ []string) error {
				ratings, err := a.reports.AgentRatings(cmd.Context())
				if err != nil {
					return err
				}
				writeRatings(cmd.OutOrStdout(), ratings)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "escalations",
			Short: "Unresolved tickets past the escalation window",
			Args:  cobra.NoArgs,
			RunE: a.track("reports.escalations", func(cmd *cobra.Command, _ []string) error {
				tickets, err := a.reports.Escalations(cmd.Context(), a.now())
				if err != nil {
					return err
				}
				writeTickets(cmd.OutOrStdout(), tickets)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "overview",
			Short: "Monthly report and changes expiring soon",
			Args:  cobra.NoArgs,
			RunE: a.track("reports.overview", func(cmd *cobra.Command, _ []string) error {
				overview, err := a.reports.Overview(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Monthly:")
				writeMonthly(out, overview.Monthly)
				fmt.Fprintf(out, "Expiring within %d days:\n", a.cfg.Policy.ExpiryHorizonDays)
				writeChanges(out, overview.Expiring)
				return nil
			}),
		},
	)
	return cmd
}
