package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const defaultExpiryHorizonDays = 15

// ReportService serves read-only summaries over tickets and change requests.
type ReportService struct {
	store         repository.Store
	tickets       *TicketService
	changes       *ChangeRequestService
	expiryHorizon int
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	Store          repository.Store
	Tickets        *TicketService
	ChangeRequests *ChangeRequestService
	// ExpiryHorizonDays defaults to 15.
	ExpiryHorizonDays int
}

// AgentRating summarizes how requesters rated one agent.
type AgentRating struct {
	Agent   domain.User
	Tickets int
	Rated   int
	Average float64
	Flagged int
}

// Overview bundles the figures shown on the admin report screen.
type Overview struct {
	Monthly  map[string]string
	Expiring []domain.ChangeRequest
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	horizon := deps.ExpiryHorizonDays
	if horizon <= 0 {
		horizon = defaultExpiryHorizonDays
	}
	return &ReportService{
		store:         deps.Store,
		tickets:       deps.Tickets,
		changes:       deps.ChangeRequests,
		expiryHorizon: horizon,
	}
}

func (r *ReportService) MonthlyReport(ctx context.Context) (map[string]string, error) {
	return r.tickets.MonthlyReport(ctx)
}

func (r *ReportService) Escalations(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	return r.tickets.Escalations(ctx, now)
}

func (r *ReportService) ExpiringChanges(ctx context.Context, days int) ([]domain.ChangeRequest, error) {
	return r.changes.ExpiringWithin(ctx, days)
}

func (r *ReportService) QuarterlyReport(ctx context.Context, quarter int) ([]domain.ChangeRequest, error) {
	return r.changes.QuarterlyReport(ctx, quarter)
}

// AgentRatings groups tickets by assigned agent. The average only covers
// rated tickets and is zero when none is rated.
func (r *ReportService) AgentRatings(ctx context.Context) ([]AgentRating, error) {
	tickets, err := r.store.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byAgent := make(map[int64]*AgentRating)
	sums := make(map[int64]int)
	for i := range tickets {
		agent := tickets[i].AssignedAgent
		if agent == nil {
			continue
		}
		stat, ok := byAgent[agent.ID]
		if !ok {
			stat = &AgentRating{Agent: *agent}
			byAgent[agent.ID] = stat
		}
		stat.Tickets++
		if tickets[i].Rating != nil {
			stat.Rated++
			sums[agent.ID] += *tickets[i].Rating
		}
		if tickets[i].AgentFlagged {
			stat.Flagged++
		}
	}

	result := make([]AgentRating, 0, len(byAgent))
	for id, stat := range byAgent {
		if stat.Rated > 0 {
			stat.Average = float64(sums[id]) / float64(stat.Rated)
		}
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Agent.ID < result[j].Agent.ID })
	return result, nil
}

// Overview returns the monthly report and the changes expiring within the
// configured horizon.
func (r *ReportService) Overview(ctx context.Context) (*Overview, error) {
	monthly, err := r.tickets.MonthlyReport(ctx)
	if err != nil {
		return nil, err
	}
	expiring, err := r.changes.ExpiringWithin(ctx, r.expiryHorizon)
	if err != nil {
		return nil, err
	}
	return &Overview{Monthly: monthly, Expiring: expiring}, nil
}

func monthlyReport(tickets []domain.Ticket) map[string]string {
	type counts struct{ resolved, reopened int }
	months := make(map[string]*counts)
	for i := range tickets {
		var resolved, reopened int
		switch tickets[i].Status {
		case domain.TicketStatusResolved:
			resolved = 1
		case domain.TicketStatusReopened:
			reopened = 1
		default:
			continue
		}
		updated := tickets[i].UpdatedAt.UTC()
		key := fmt.Sprintf("%d-%d", updated.Year(), int(updated.Month()))
		c, ok := months[key]
		if !ok {
			c = &counts{}
			months[key] = c
		}
		c.resolved += resolved
		c.reopened += reopened
	}

	report := make(map[string]string, len(months))
	for key, c := range months {
		report[key] = fmt.Sprintf("resolved=%d, reopened=%d", c.resolved, c.reopened)
	}
	return report
}

func escalations(tickets []domain.Ticket, now time.Time, after time.Duration) []domain.Ticket {
	threshold := now.Add(-after)
	result := make([]domain.Ticket, 0)
	for i := range tickets {
		if tickets[i].Status != domain.TicketStatusResolved && tickets[i].CreatedAt.Before(threshold) {
			result = append(result, tickets[i])
		}
	}
	return result
}

func expiringWithin(changes []domain.ChangeRequest, today time.Time, days int) []domain.ChangeRequest {
	limit := domain.DateOf(today).AddDate(0, 0, days)
	result := make([]domain.ChangeRequest, 0)
	for i := range changes {
		if changes[i].Archived {
			continue
		}
		if !domain.DateOf(changes[i].ExpiryDate).After(limit) {
			result = append(result, changes[i])
		}
	}
	return result
}
