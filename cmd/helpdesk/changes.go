package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

func (a *app) changesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Raise, decide and implement change requests",
	}
	cmd.AddCommand(
		a.changeRaiseCmd(),
		a.changeListCmd(),
		a.changeRenewCmd(),
		a.changeRemoveCmd(),
		a.changeDecideCmd("approve", true),
		a.changeDecideCmd("reject", false),
		a.changeImplementCmd(),
		a.changeExpiringCmd(),
		a.changeQuarterCmd(),
		a.changeArchiveCmd(),
	)
	return cmd
}

func (a *app) changeRaiseCmd() *cobra.Command {
	var title, description, expiry string
	cmd := &cobra.Command{
		Use:   "raise",
		Short: "Raise a change request",
		Args:  cobra.NoArgs,
		RunE: a.track("changes.raise", func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			input := service.ChangeRequestInput{Title: title, Description: description}
			if expiry != "" {
				if input.Expiry, err = parseDate("expiry", expiry); err != nil {
					return err
				}
			}
			cr, err := a.changes.Raise(cmd.Context(), actor, input)
			if err != nil {
				return err
			}
			writeChange(cmd.OutOrStdout(), cr)
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "short summary")
	cmd.Flags().StringVar(&description, "description", "", "what will change")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date, YYYY-MM-DD")
	return cmd
}

func (a *app) changeListCmd() *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change requests",
		Args:  cobra.NoArgs,
		RunE: a.track("changes.list", func(cmd *cobra.Command, _ []string) error {
			list := a.changes.ListActive
			if archived {
				list = a.changes.ListArchived
			}
			changes, err := list(cmd.Context())
			if err != nil {
				return err
			}
			writeChanges(cmd.OutOrStdout(), changes)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "list the archive instead")
	return cmd
}

func (a *app) changeRenewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew <id> <YYYY-MM-DD>",
		Short: "Move the expiry date of a change request",
		Args:  cobra.ExactArgs(2),
		RunE: a.track("changes.renew", func(cmd *cobra.Command, args []string) error {
			actor, id, err := a.actorAndChange(cmd, args)
			if err != nil {
				return err
			}
			expiry, err := parseDate("expiry", args[1])
			if err != nil {
				return err
			}
			cr, err := a.changes.Renew(cmd.Context(), actor, id, expiry)
			if err != nil {
				return err
			}
			writeChange(cmd.OutOrStdout(), cr)
			return nil
		}),
	}
}

func (a *app) changeRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a change request",
		Args:  cobra.ExactArgs(1),
		RunE: a.track("changes.remove", func(cmd *cobra.Command, args []string) error {
			actor, id, err := a.actorAndChange(cmd, args)
			if err != nil {
				return err
			}
			if err := a.changes.Remove(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "change request #%d removed\n", id)
			return nil
		}),
	}
}

func (a *app) changeDecideCmd(use string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: "Decide a change request (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: a.track("changes."+use, func(cmd *cobra.Command, args []string) error {
			actor, id, err := a.actorAndChange(cmd, args)
			if err != nil {
				return err
			}
			cr, err := a.changes.Approve(cmd.Context(), actor, id, approve)
			if err != nil {
				return err
			}
			writeChange(cmd.OutOrStdout(), cr)
			return nil
		}),
	}
}

func (a *app) changeImplementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "implement <id> <note>",
		Short: "Mark an approved change request implemented",
		Args:  cobra.ExactArgs(2),
		RunE: a.track("changes.implement", func(cmd *cobra.Command, args []string) error {
			actor, id, err := a.actorAndChange(cmd, args)
			if err != nil {
				return err
			}
			cr, err := a.changes.Implement(cmd.Context(), actor, id, args[1])
			if err != nil {
				return err
			}
			writeChange(cmd.OutOrStdout(), cr)
			return nil
		}),
	}
}

func (a *app) changeExpiringCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List change requests expiring soon",
		Args:  cobra.NoArgs,
		RunE: a.track("changes.expiring", func(cmd *cobra.Command, _ []string) error {
			changes, err := a.reports.ExpiringChanges(cmd.Context(), days)
			if err != nil {
				return err
			}
			writeChanges(cmd.OutOrStdout(), changes)
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", a.cfg.Policy.ExpiryHorizonDays, "look ahead this many days")
	return cmd
}

func (a *app) changeQuarterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quarter <1-4>",
		Short: "List change requests raised in a calendar quarter",
		Args:  cobra.ExactArgs(1),
		RunE: a.track("changes.quarter", func(cmd *cobra.Command, args []string) error {
			quarter, err := parseInt("quarter", args[0])
			if err != nil {
				return err
			}
			changes, err := a.reports.QuarterlyReport(cmd.Context(), quarter)
			if err != nil {
				return err
			}
			writeChanges(cmd.OutOrStdout(), changes)
			return nil
		}),
	}
}

func (a *app) changeArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive change requests older than a year",
		Args:  cobra.NoArgs,
		RunE: a.track("changes.archive", func(cmd *cobra.Command, _ []string) error {
			archived, err := a.changes.ArchiveOld(cmd.Context(), a.now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d change request(s)\n", len(archived))
			return nil
		}),
	}
}

func (a *app) actorAndChange(cmd *cobra.Command, args []string) (domain.User, int64, error) {
	actor, err := a.actor(cmd.Context())
	if err != nil {
		return domain.User{}, 0, err
	}
	id, err := parseID("change id", args[0])
	if err != nil {
		return domain.User{}, 0, err
	}
	return actor, id, nil
}
