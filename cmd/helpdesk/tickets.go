package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

func (a *app) ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Raise and work support tickets",
	}
	cmd.AddCommand(
		a.ticketCreateCmd(),
		a.ticketListCmd(),
		a.ticketShowCmd(),
		a.ticketDescribeCmd(),
		a.ticketStatusCmd(),
		a.ticketCloseCmd(),
		a.ticketAwaitCmd(),
		a.ticketReopenCmd(),
		a.ticketNoteCmd(),
		a.ticketRateCmd(),
		a.ticketAssignCmd(),
		a.ticketReassignCmd(),
		a.ticketSearchCmd(),
	)
	return cmd
}

// ticketCommand builds a command that resolves the actor, parses the ticket
// id from the first argument and prints the ticket fn returns.
func (a *app) ticketCommand(use, short, op string, nArgs int, fn func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nArgs),
		RunE: a.track(op, func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseID("ticket id", args[0])
			if err != nil {
				return err
			}
			ticket, err := fn(cmd, actor, id, args[1:])
			if err != nil {
				return err
			}
			writeTicket(cmd.OutOrStdout(), ticket)
			return nil
		}),
	}
}

func (a *app) ticketCreateCmd() *cobra.Command {
	var input service.TicketCreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Raise a ticket",
		Args:  cobra.NoArgs,
		RunE: a.track("tickets.create", func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			ticket, err := a.tickets.CreateTicket(cmd.Context(), actor, input)
			if err != nil {
				return err
			}
			writeTicket(cmd.OutOrStdout(), ticket)
			return nil
		}),
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "short summary")
	cmd.Flags().StringVar(&input.Description, "description", "", "what went wrong")
	cmd.Flags().StringVar(&input.Category, "category", "", "ticket category")
	return cmd
}

func (a *app) ticketListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tickets visible to the acting user",
		Args:  cobra.NoArgs,
		RunE: a.track("tickets.list", func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			tickets, err := a.tickets.ViewTicketsForUser(cmd.Context(), actor)
			if err != nil {
				return err
			}
			writeTickets(cmd.OutOrStdout(), tickets)
			return nil
		}),
	}
}

func (a *app) ticketShowCmd() *cobra.Command {
	return a.ticketCommand("show <id>", "Show a ticket with notes and history", "tickets.show", 1,
		func(cmd *cobra.Command, actor domain.User, id int64, _ []string) (*domain.Ticket, error) {
			return a.tickets.GetTicket(cmd.Context(), actor, id)
		})
}

func (a *app) ticketDescribeCmd() *cobra.Command {
	return a.ticketCommand("describe <id> <description>", "Replace the description of your ticket", "tickets.describe", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			return a.tickets.UpdateDescription(cmd.Context(), actor, id, args[0])
		})
}

func (a *app) ticketStatusCmd() *cobra.Command {
	return a.ticketCommand("status <id> <STATUS>", "Set the ticket status", "tickets.status", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			status := domain.TicketStatus(strings.ToUpper(args[0]))
			return a.tickets.UpdateStatus(cmd.Context(), actor, id, status)
		})
}

func (a *app) ticketCloseCmd() *cobra.Command {
	return a.ticketCommand("close <id>", "Resolve a ticket", "tickets.close", 1,
		func(cmd *cobra.Command, actor domain.User, id int64, _ []string) (*domain.Ticket, error) {
			return a.tickets.CloseOrAwait(cmd.Context(), actor, id, true, "")
		})
}

func (a *app) ticketAwaitCmd() *cobra.Command {
	return a.ticketCommand("await <id> <message>", "Park a ticket awaiting a response", "tickets.await", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			return a.tickets.CloseOrAwait(cmd.Context(), actor, id, false, args[0])
		})
}

func (a *app) ticketReopenCmd() *cobra.Command {
	return a.ticketCommand("reopen <id> <reason>", "Reopen a ticket", "tickets.reopen", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			return a.tickets.Reopen(cmd.Context(), actor, id, args[0])
		})
}

func (a *app) ticketNoteCmd() *cobra.Command {
	return a.ticketCommand("note <id> <message>", "Add a note to a ticket", "tickets.note", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			return a.tickets.AddNote(cmd.Context(), actor, id, args[0])
		})
}

func (a *app) ticketRateCmd() *cobra.Command {
	return a.ticketCommand("rate <id> <1-5>", "Rate a resolved ticket", "tickets.rate", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			rating, err := parseInt("rating", args[0])
			if err != nil {
				return nil, err
			}
			return a.tickets.AddRating(cmd.Context(), actor, id, rating)
		})
}

func (a *app) ticketAssignCmd() *cobra.Command {
	return a.ticketCommand("assign <id>", "Assign the least loaded agent", "tickets.assign", 1,
		func(cmd *cobra.Command, actor domain.User, id int64, _ []string) (*domain.Ticket, error) {
			return a.tickets.AssignAgent(cmd.Context(), id, actor.Name)
		})
}

func (a *app) ticketReassignCmd() *cobra.Command {
	var reason string
	cmd := a.ticketCommand("reassign <id> <agentID>", "Move a ticket to another agent", "tickets.reassign", 2,
		func(cmd *cobra.Command, actor domain.User, id int64, args []string) (*domain.Ticket, error) {
			agentID, err := parseID("agent id", args[0])
			if err != nil {
				return nil, err
			}
			return a.tickets.Reassign(cmd.Context(), actor, id, agentID, reason)
		})
	cmd.Flags().StringVar(&reason, "reason", "", "why the ticket moves")
	return cmd
}

func (a *app) ticketSearchCmd() *cobra.Command {
	var status, from, to string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search tickets by status and creation date",
		Args:  cobra.NoArgs,
		RunE: a.track("tickets.search", func(cmd *cobra.Command, _ []string) error {
			var filter service.TicketSearch
			if status != "" {
				s := domain.TicketStatus(strings.ToUpper(status))
				filter.Status = &s
			}
			var err error
			if filter.From, err = optionalDate("from", from); err != nil {
				return err
			}
			if filter.To, err = optionalDate("to", to); err != nil {
				return err
			}
			tickets, err := a.tickets.Search(cmd.Context(), filter)
			if err != nil {
				return err
			}
			writeTickets(cmd.OutOrStdout(), tickets)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "exact status")
	cmd.Flags().StringVar(&from, "from", "", "first creation date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last creation date, YYYY-MM-DD")
	return cmd
}

func optionalDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(name, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
