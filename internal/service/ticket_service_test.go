package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCreateTicketOpensAndAssignsLeastLoadedAgent(t *testing.T) {
	f := newFixture(t)

	ticket := f.createTicket(t, alice, "Printer broken")

	assert.Equal(t, int64(1), ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.AssignedAgent)
	assert.Equal(t, agentOne.ID, ticket.AssignedAgent.ID)
	assert.Equal(t, []string{"Ticket raised", "Assigned to agent AgentOne"}, historyActions(ticket))
	assert.Equal(t, "Alice", ticket.History[0].PerformedBy)
	assert.Equal(t, "System assignment", ticket.History[1].PerformedBy)

	stored := f.storedTicket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Len(t, stored.History, 2)
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketAssigned}, f.events.Types())

	second := f.createTicket(t, bob, "Monitor flickers")
	third := f.createTicket(t, bob, "Mouse dead")
	assert.Equal(t, agentTwo.ID, second.AssignedAgent.ID)
	assert.Equal(t, agentOne.ID, third.AssignedAgent.ID)
}

func TestCreateTicketWithoutAgentsStaysUnassigned(t *testing.T) {
	f := newFixture(t, alice, admin)

	ticket := f.createTicket(t, alice, "Printer broken")

	assert.Nil(t, ticket.AssignedAgent)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, []string{"Ticket raised"}, historyActions(ticket))
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.events.Types())
}

func TestCreateTicketValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.CreateTicket(f.ctx, alice, TicketCreateInput{Title: "  ", Description: "x", Category: "hw"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	all, err := f.store.Tickets().List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.Types())
}

func TestUserCannotMoveTicketToAwaitingResponse(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")
	f.events.Reset()

	_, err := f.tickets.UpdateStatus(f.ctx, alice, ticket.ID, domain.TicketStatusAwaitingResponse)
	require.Error(t, err)
	assert.True(t, apperrors.IsPermission(err))

	stored := f.storedTicket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Len(t, stored.History, 2)
	assert.Empty(t, f.events.Types())
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	_, err := f.tickets.UpdateStatus(f.ctx, bob, ticket.ID, domain.TicketStatusResolved)
	assert.True(t, apperrors.IsPermission(err))

	_, err = f.tickets.UpdateStatus(f.ctx, agentOne, ticket.ID, domain.TicketStatus("CLOSED"))
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.tickets.UpdateStatus(f.ctx, agentOne, 999, domain.TicketStatusResolved)
	assert.True(t, apperrors.IsNotFound(err))

	updated, err := f.tickets.UpdateStatus(f.ctx, agentTwo, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, "Status changed to IN_PROGRESS", updated.History[len(updated.History)-1].Action)

	updated, err = f.tickets.UpdateStatus(f.ctx, alice, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
}

func TestUpdateDescription(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	_, err := f.tickets.UpdateDescription(f.ctx, bob, ticket.ID, "mine now")
	assert.True(t, apperrors.IsPermission(err))

	updated, err := f.tickets.UpdateDescription(f.ctx, alice, ticket.ID, "paper jam on tray 2")
	require.NoError(t, err)
	assert.Equal(t, "paper jam on tray 2", updated.Description)
	assert.Equal(t, "Description updated", updated.History[len(updated.History)-1].Action)

	_, err = f.tickets.UpdateStatus(f.ctx, agentOne, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	_, err = f.tickets.UpdateDescription(f.ctx, alice, ticket.ID, "too late")
	assert.True(t, apperrors.IsState(err))

	_, err = f.tickets.Reopen(f.ctx, alice, ticket.ID, "still jams")
	require.NoError(t, err)
	_, err = f.tickets.UpdateDescription(f.ctx, alice, ticket.ID, "jams again")
	assert.NoError(t, err)
}

func TestCloseOrAwaitAndReopen(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	awaiting, err := f.tickets.CloseOrAwait(f.ctx, agentOne, ticket.ID, false, "need model number")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAwaitingResponse, awaiting.Status)
	assert.Equal(t, "Moved to awaiting response: need model number", awaiting.History[len(awaiting.History)-1].Action)

	closed, err := f.tickets.CloseOrAwait(f.ctx, alice, ticket.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, closed.Status)

	reopened, err := f.tickets.Reopen(f.ctx, bob, ticket.ID, "broke again")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusReopened, reopened.Status)
	assert.Equal(t, "Reopened: broke again", reopened.History[len(reopened.History)-1].Action)
	assert.Equal(t, "Bob", reopened.History[len(reopened.History)-1].PerformedBy)
}

func TestAddNote(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	_, err := f.tickets.AddNote(f.ctx, agentOne, -1, "hello")
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.tickets.AddNote(f.ctx, agentOne, 42, "hello")
	assert.True(t, apperrors.IsNotFound(err))

	updated, err := f.tickets.AddNote(f.ctx, agentOne, ticket.ID, "toner replaced")
	require.NoError(t, err)
	require.Len(t, updated.Notes, 1)
	assert.Equal(t, "toner replaced", updated.Notes[0].Message)
	assert.Equal(t, agentOne.ID, updated.Notes[0].AuthorID)

	stored := f.storedTicket(t, ticket.ID)
	assert.Len(t, stored.Notes, 1)
	assert.Equal(t, "Note added", stored.History[len(stored.History)-1].Action)
}

func TestLowRatingFlagsAgent(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	_, err := f.tickets.AddRating(f.ctx, alice, ticket.ID, 3)
	assert.True(t, apperrors.IsState(err))

	_, err = f.tickets.UpdateStatus(f.ctx, agentOne, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	f.events.Reset()

	_, err = f.tickets.AddRating(f.ctx, bob, ticket.ID, 1)
	assert.True(t, apperrors.IsPermission(err))
	_, err = f.tickets.AddRating(f.ctx, alice, ticket.ID, 6)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.events.Types())

	rated, err := f.tickets.AddRating(f.ctx, alice, ticket.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 1, *rated.Rating)
	assert.True(t, rated.AgentFlagged)
	assert.Equal(t, "Rated with score 1", rated.History[len(rated.History)-1].Action)
	assert.Equal(t, []events.EventType{events.EventTicketRated, events.EventTicketAgentFlagged}, f.events.Types())

	rerated, err := f.tickets.AddRating(f.ctx, alice, ticket.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, *rerated.Rating)
	assert.True(t, rerated.AgentFlagged)
	assert.True(t, f.storedTicket(t, ticket.ID).AgentFlagged)
}

func TestRatingValidatedBeforeLookup(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.AddRating(f.ctx, alice, 999, 0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestReassign(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	_, err := f.tickets.Reassign(f.ctx, agentOne, ticket.ID, agentTwo.ID, "load")
	assert.True(t, apperrors.IsPermission(err))

	_, err = f.tickets.Reassign(f.ctx, admin, ticket.ID, 555, "load")
	assert.True(t, apperrors.IsNotFound(err))

	updated, err := f.tickets.Reassign(f.ctx, admin, ticket.ID, agentTwo.ID, "load")
	require.NoError(t, err)
	assert.Equal(t, agentTwo.ID, updated.AssignedAgent.ID)
	assert.Equal(t, "Reassigned to AgentTwo reason: load", updated.History[len(updated.History)-1].Action)
	assert.Equal(t, agentTwo.ID, f.storedTicket(t, ticket.ID).AssignedAgent.ID)
}

func TestAssignAgentWithoutAgentsIsNoop(t *testing.T) {
	f := newFixture(t, alice)
	ticket := f.createTicket(t, alice, "Printer broken")

	updated, err := f.tickets.AssignAgent(f.ctx, ticket.ID, "Admin")
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedAgent)
	assert.Len(t, updated.History, 1)
}

func TestViewTicketsForUser(t *testing.T) {
	f := newFixture(t)
	first := f.createTicket(t, alice, "Printer broken")
	second := f.createTicket(t, bob, "Monitor flickers")

	all, err := f.tickets.ViewTicketsForUser(f.ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.tickets.ViewTicketsForUser(f.ctx, agentOne)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	requested, err := f.tickets.ViewTicketsForUser(f.ctx, bob)
	require.NoError(t, err)
	require.Len(t, requested, 1)
	assert.Equal(t, second.ID, requested[0].ID)
}

func TestGetTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	for _, u := range []domain.User{alice, agentOne, admin} {
		got, err := f.tickets.GetTicket(f.ctx, u, ticket.ID)
		require.NoError(t, err, u.Name)
		assert.Len(t, got.History, 2)
	}
	_, err := f.tickets.GetTicket(f.ctx, bob, ticket.ID)
	assert.True(t, apperrors.IsPermission(err))
	_, err = f.tickets.GetTicket(f.ctx, admin, 77)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSearchByStatusAndDate(t *testing.T) {
	f := newFixture(t)
	first := f.createTicket(t, alice, "Printer broken")
	f.clock.Set(time.Date(2024, 3, 12, 16, 0, 0, 0, time.UTC))
	second := f.createTicket(t, bob, "Monitor flickers")
	_, err := f.tickets.UpdateStatus(f.ctx, agentTwo, second.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	open := domain.TicketStatusOpen
	got, err := f.tickets.Search(f.ctx, TicketSearch{Status: &open})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)

	day := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	got, err = f.tickets.Search(f.ctx, TicketSearch{From: &day, To: &day})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)

	from := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	got, err = f.tickets.Search(f.ctx, TicketSearch{From: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	got, err = f.tickets.Search(f.ctx, TicketSearch{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)
	first := f.createTicket(t, alice, "Printer broken")
	second := f.createTicket(t, alice, "Scanner broken")
	f.createTicket(t, bob, "Still open")

	_, err := f.tickets.UpdateStatus(f.ctx, agentOne, first.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	f.clock.Set(time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC))
	_, err = f.tickets.Reopen(f.ctx, alice, second.ID, "again")
	require.NoError(t, err)

	report, err := f.tickets.MonthlyReport(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2024-3": "resolved=1, reopened=0",
		"2024-4": "resolved=0, reopened=1",
	}, report)
}

func TestEscalations(t *testing.T) {
	f := newFixture(t)
	old := f.createTicket(t, alice, "Printer broken")
	done := f.createTicket(t, alice, "Scanner broken")
	_, err := f.tickets.UpdateStatus(f.ctx, agentTwo, done.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	f.createTicket(t, bob, "Fresh")

	got, err := f.tickets.Escalations(f.ctx, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)
}

func TestHistoryTimestampsNeverGoBackwards(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")

	f.clock.Advance(-time.Hour)
	updated, err := f.tickets.AddNote(f.ctx, alice, ticket.ID, "hello")
	require.NoError(t, err)

	for i := 1; i < len(updated.History); i++ {
		assert.False(t, updated.History[i].Timestamp.Before(updated.History[i-1].Timestamp))
	}
}

type failingStore struct{ repository.Store }

func (s failingStore) Tickets() repository.TicketRepository {
	return failingTickets{s.Store.Tickets()}
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error { return fn(failingStore{tx}) })
}

type failingTickets struct{ repository.TicketRepository }

func (failingTickets) Update(context.Context, *domain.Ticket) error {
	return errors.New("disk full")
}

func TestFailedOperationLeavesStorageUnchanged(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, alice, "Printer broken")
	f.events.Reset()

	dispatcher := events.NewInMemoryDispatcher()
	recorder := newEventRecorder(dispatcher)
	broken := NewTicketService(TicketDependencies{Store: failingStore{f.store}, Dispatcher: dispatcher, Clock: f.clock.Now})

	_, err := broken.AddNote(f.ctx, agentOne, ticket.ID, "lost")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeInternal, domainErr.Code)

	stored := f.storedTicket(t, ticket.ID)
	assert.Empty(t, stored.Notes)
	assert.Len(t, stored.History, 2)

	_, err = broken.CreateTicket(f.ctx, bob, TicketCreateInput{Title: "x", Description: "y", Category: "z"})
	require.Error(t, err)
	all, err := f.store.Tickets().List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, recorder.Types())
}
