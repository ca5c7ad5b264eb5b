package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	systemAssignmentLabel = "System assignment"
	defaultEscalateAfter  = 24 * time.Hour
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	store         repository.Store
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
	escalateAfter time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
	// EscalateAfter defaults to 24h.
	EscalateAfter time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"required"`
	Category    string `validate:"required,max=100"`
}

// TicketSearch filters tickets by exact status and an inclusive creation date range.
type TicketSearch struct {
	Status *domain.TicketStatus
	From   *time.Time
	To     *time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:         deps.Store,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		now:           deps.Clock,
		escalateAfter: deps.EscalateAfter,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = utcNow
	}
	if s.escalateAfter <= 0 {
		s.escalateAfter = defaultEscalateAfter
	}
	return s
}

// CreateTicket raises a ticket, assigns the least loaded agent and opens it.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var (
		ticket *domain.Ticket
		agent  *domain.User
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		now := s.now()
		ticket = &domain.Ticket{
			Requester:   requester,
			Category:    input.Category,
			Title:       input.Title,
			Description: input.Description,
			Status:      domain.TicketStatusRaised,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.logHistory(ctx, tx, ticket, "Ticket raised", requester.Name); err != nil {
			return err
		}
		var err error
		if agent, err = s.assign(ctx, tx, ticket, systemAssignmentLabel); err != nil {
			return err
		}
		ticket.Status = domain.TicketStatusOpen
		ticket.UpdatedAt = s.now()
		return apperrors.MapError(tx.Tickets().Update(ctx, ticket))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("requester_id", requester.ID),
		zap.Bool("assigned", agent != nil))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		EntityID: ticket.ID,
		Actor:    events.ActorFrom(requester),
		Payload:  events.TicketCreatedPayload{Title: ticket.Title, Category: ticket.Category},
	})
	if agent != nil {
		s.publishAssigned(ctx, requester, ticket, *agent, "")
	}
	return ticket, nil
}

// ViewTicketsForUser lists the tickets visible to user: all for admins,
// assigned ones for agents, requested ones for users.
func (s *TicketService) ViewTicketsForUser(ctx context.Context, user domain.User) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if user.IsAdmin() {
		return tickets, nil
	}
	visible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if user.IsAgent() && tickets[i].AssignedTo(user.ID) {
			visible = append(visible, tickets[i])
		} else if user.Role == domain.RoleUser && tickets[i].RequestedBy(user.ID) {
			visible = append(visible, tickets[i])
		}
	}
	return visible, nil
}

// GetTicket returns one ticket with its notes and history if actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, s.store, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !ticket.AssignedTo(actor.ID) && !ticket.RequestedBy(actor.ID) {
		return nil, apperrors.NewPermissionDenied("ticket not visible to actor", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// UpdateDescription lets the requester edit an open or reopened ticket.
func (s *TicketService) UpdateDescription(ctx context.Context, user domain.User, ticketID int64, description string) (*domain.Ticket, error) {
	return s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		if !ticket.RequestedBy(user.ID) {
			return apperrors.NewPermissionDenied("only requester can edit description", map[string]any{"ticket_id": ticketID})
		}
		if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusReopened {
			return apperrors.NewInvalidState("description editable only when open or reopened", map[string]any{"status": ticket.Status})
		}
		ticket.Description = description
		ticket.UpdatedAt = s.now()
		return s.logHistory(ctx, tx, ticket, "Description updated", user.Name)
	})
}

// UpdateStatus sets any status. Users may only touch their own tickets and
// may never move one to awaiting response.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.User, ticketID int64, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": status})
	}
	var oldStatus domain.TicketStatus
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		if actor.Role == domain.RoleUser && !ticket.RequestedBy(actor.ID) {
			return apperrors.NewPermissionDenied("user cannot change others' tickets", map[string]any{"ticket_id": ticketID})
		}
		if actor.Role == domain.RoleUser && status == domain.TicketStatusAwaitingResponse {
			return apperrors.NewPermissionDenied("user cannot move ticket to awaiting response", map[string]any{"ticket_id": ticketID})
		}
		oldStatus = ticket.Status
		ticket.Status = status
		ticket.UpdatedAt = s.now()
		return s.logHistory(ctx, tx, ticket, fmt.Sprintf("Status changed to %s", status), actor.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, ticket, oldStatus, "")
	return ticket, nil
}

// CloseOrAwait resolves the ticket when confirmClose is set, otherwise parks
// it awaiting a response with the given message.
func (s *TicketService) CloseOrAwait(ctx context.Context, actor domain.User, ticketID int64, confirmClose bool, awaitMessage string) (*domain.Ticket, error) {
	if confirmClose {
		return s.UpdateStatus(ctx, actor, ticketID, domain.TicketStatusResolved)
	}
	var oldStatus domain.TicketStatus
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		oldStatus = ticket.Status
		ticket.Status = domain.TicketStatusAwaitingResponse
		ticket.UpdatedAt = s.now()
		return s.logHistory(ctx, tx, ticket, "Moved to awaiting response: "+awaitMessage, actor.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, ticket, oldStatus, awaitMessage)
	return ticket, nil
}

// Reopen puts the ticket back into the active cycle. Any role may reopen.
func (s *TicketService) Reopen(ctx context.Context, actor domain.User, ticketID int64, reason string) (*domain.Ticket, error) {
	var oldStatus domain.TicketStatus
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		oldStatus = ticket.Status
		ticket.Status = domain.TicketStatusReopened
		ticket.UpdatedAt = s.now()
		return s.logHistory(ctx, tx, ticket, "Reopened: "+reason, actor.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, ticket, oldStatus, reason)
	return ticket, nil
}

// AddNote appends a note and its matching history entry.
func (s *TicketService) AddNote(ctx context.Context, actor domain.User, ticketID int64, message string) (*domain.Ticket, error) {
	if ticketID < 0 {
		return nil, apperrors.NewValidationError("invalid ticket id", map[string]any{"ticket_id": ticketID})
	}
	if !actor.Role.Valid() {
		return nil, apperrors.NewPermissionDenied("unknown role", map[string]any{"role": actor.Role})
	}
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		note := domain.Note{
			AuthorID:   actor.ID,
			AuthorName: actor.Name,
			Message:    message,
			CreatedAt:  s.now(),
		}
		if err := tx.Tickets().AddNote(ctx, ticket.ID, note); err != nil {
			return apperrors.MapError(err)
		}
		ticket.Notes = append(ticket.Notes, note)
		return s.logHistory(ctx, tx, ticket, "Note added", actor.Name)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketNoteAdded,
		EntityID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.TicketNoteAddedPayload{BodyPreview: stringPreview(message, 120)},
	})
	return ticket, nil
}

// AddRating records the requester's 1-5 rating of a resolved ticket. A score
// below 2 flags the assigned agent; the flag is never cleared.
func (s *TicketService) AddRating(ctx context.Context, user domain.User, ticketID int64, rating int) (*domain.Ticket, error) {
	if err := validateValue("rating", rating, "min=1,max=5"); err != nil {
		return nil, err
	}
	ticket, err := s.withTicket(ctx, ticketID, func(tx repository.Store, ticket *domain.Ticket) error {
		if !ticket.RequestedBy(user.ID) {
			return apperrors.NewPermissionDenied("only requester can rate", map[string]any{"ticket_id": ticketID})
		}
		if ticket.Status != domain.TicketStatusResolved {
			return apperrors.NewInvalidState("rating allowed after resolution", map[string]any{"status": ticket.Status})
		}
		ticket.Rating = &rating
		if rating < 2 && ticket.AssignedAgent != nil {
			ticket.AgentFlagged = true
		}
		return s.logHistory(ctx, tx, ticket, fmt.Sprintf("Rated with score %d", rating), user.Name)
	})
	if err != nil {
		return nil, err
	}

	payload := events.TicketRatedPayload{Rating: rating, AgentFlagged: ticket.AgentFlagged}
	if ticket.AssignedAgent != nil {
		payload.AgentID = &ticket.AssignedAgent.ID
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRated,
		EntityID: ticket.ID,
		Actor:    events.ActorFrom(user),
		Payload:  payload,
	})
	if rating < 2 && ticket.AssignedAgent != nil {
		s.logger.Warn("agent flagged by low rating",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("agent_id", ticket.AssignedAgent.ID),
			zap.Int("rating", rating))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAgentFlagged,
			EntityID: ticket.ID,
			Actor:    events.ActorFrom(user),
			Payload:  payload,
		})
	}
	return ticket, nil
}

// Search filters by exact status and creation date within [From, To].
func (s *TicketService) Search(ctx context.Context, filter TicketSearch) ([]domain.Ticket, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": *filter.Status})
	}
	tickets, err := s.store.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	result := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if filter.Status != nil && tickets[i].Status != *filter.Status {
			continue
		}
		created := domain.DateOf(tickets[i].CreatedAt)
		if filter.From != nil && created.Before(domain.DateOf(*filter.From)) {
			continue
		}
		if filter.To != nil && created.After(domain.DateOf(*filter.To)) {
			continue
		}
		result = append(result, tickets[i])
	}
	return result, nil
}

// MonthlyReport counts resolved and reopened tickets per month of last update.
func (s *TicketService) MonthlyReport(ctx context.Context) (map[string]string, error) {
	tickets, err := s.store.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return monthlyReport(tickets), nil
}

// Escalations returns unresolved tickets created more than the escalation
// window before now.
func (s *TicketService) Escalations(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return escalations(tickets, now, s.escalateAfter), nil
}

// withTicket loads the ticket in a transaction, applies fn and persists the
// ticket. Either everything fn wrote is committed or nothing is.
func (s *TicketService) withTicket(ctx context.Context, ticketID int64, fn func(tx repository.Store, ticket *domain.Ticket) error) (*domain.Ticket, error) {
	var result *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := fn(tx, ticket); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		result = ticket
		return nil
	})
	if err != nil {
		s.logger.Debug("ticket operation rejected", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("ticket updated",
		zap.Int64("ticket_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.String("action", lastAction(result)))
	return result, nil
}

func (s *TicketService) loadTicket(ctx context.Context, store repository.Store, ticketID int64) (*domain.Ticket, error) {
	ticket, err := store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// logHistory appends an audit entry. Timestamps never go backwards even if
// the clock does.
func (s *TicketService) logHistory(ctx context.Context, tx repository.Store, ticket *domain.Ticket, action, performedBy string) error {
	ts := s.now()
	if n := len(ticket.History); n > 0 && ts.Before(ticket.History[n-1].Timestamp) {
		ts = ticket.History[n-1].Timestamp
	}
	entry := domain.HistoryEntry{Timestamp: ts, Action: action, PerformedBy: performedBy}
	if err := tx.Tickets().AddHistory(ctx, ticket.ID, entry); err != nil {
		return apperrors.MapError(err)
	}
	ticket.History = append(ticket.History, entry)
	return nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, event)
}

func (s *TicketService) publishStatusChanged(ctx context.Context, actor domain.User, ticket *domain.Ticket, oldStatus domain.TicketStatus, comment string) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Comment:   comment,
		},
	})
}

func (s *TicketService) publishAssigned(ctx context.Context, actor domain.User, ticket *domain.Ticket, agent domain.User, reason string) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		EntityID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.TicketAssignedPayload{AgentID: agent.ID, AgentName: agent.Name, Reason: reason},
	})
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = utcNow()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("entity_id", event.EntityID),
			zap.Error(err))
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func lastAction(ticket *domain.Ticket) string {
	if len(ticket.History) == 0 {
		return ""
	}
	return ticket.History[len(ticket.History)-1].Action
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
