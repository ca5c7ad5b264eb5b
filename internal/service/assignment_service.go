package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// LeastLoadedAgent picks the AGENT with the fewest active tickets. Ties go
// to the lowest id. Returns nil when there is no agent.
func LeastLoadedAgent(users []domain.User, tickets []domain.Ticket) *domain.User {
	load := make(map[int64]int)
	for i := range tickets {
		if tickets[i].AssignedAgent != nil && tickets[i].Status.Active() {
			load[tickets[i].AssignedAgent.ID]++
		}
	}

	var best *domain.User
	for i := range users {
		if !users[i].IsAgent() {
			continue
		}
		candidate := users[i]
		if best == nil ||
			load[candidate.ID] < load[best.ID] ||
			(load[candidate.ID] == load[best.ID] && candidate.ID < best.ID) {
			best = &candidate
		}
	}
	return best
}

// AssignAgent runs the least-loaded policy on an existing ticket. When no
// agent exists the ticket is left untouched.
func (s *TicketService) AssignAgent(ctx context.Context, ticketID int64, actorLabel string) (*domain.Ticket, error) {
	var agent *domain.User
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		var err error
		agent, err = s.assign(ctx, tx, ticket, actorLabel)
		if err == nil && agent != nil {
			ticket.UpdatedAt = s.now()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if agent != nil {
		s.publishAssigned(ctx, domain.User{Name: actorLabel}, ticket, *agent, "")
	}
	return ticket, nil
}

// Reassign moves a ticket to a named agent. Admin only.
func (s *TicketService) Reassign(ctx context.Context, admin domain.User, ticketID, newAgentID int64, reason string) (*domain.Ticket, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewPermissionDenied("only admin can reassign", map[string]any{"actor_id": admin.ID})
	}
	var agent *domain.User
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		var err error
		agent, err = tx.Users().GetByID(ctx, newAgentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("agent", map[string]any{"agent_id": newAgentID})
			}
			return apperrors.MapError(err)
		}
		ticket.AssignedAgent = agent
		ticket.UpdatedAt = s.now()
		return s.logHistory(ctx, tx, ticket, fmt.Sprintf("Reassigned to %s reason: %s", agent.Name, reason), admin.Name)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket reassigned",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("agent_id", agent.ID),
		zap.Int64("actor_id", admin.ID))
	s.publishAssigned(ctx, admin, ticket, *agent, reason)
	return ticket, nil
}

// assign applies the policy inside tx. Loads are computed from the current
// store contents on every call.
func (s *TicketService) assign(ctx context.Context, tx repository.Store, ticket *domain.Ticket, actorLabel string) (*domain.User, error) {
	users, err := tx.Users().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := tx.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agent := LeastLoadedAgent(users, tickets)
	if agent == nil {
		s.logger.Warn("no agent available for assignment", zap.Int64("ticket_id", ticket.ID))
		return nil, nil
	}
	ticket.AssignedAgent = agent
	if err := s.logHistory(ctx, tx, ticket, "Assigned to agent "+agent.Name, actorLabel); err != nil {
		return nil, err
	}
	return agent, nil
}
