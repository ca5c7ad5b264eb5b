package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

var (
	alice    = domain.User{ID: 1, Name: "Alice", Role: domain.RoleUser}
	bob      = domain.User{ID: 2, Name: "Bob", Role: domain.RoleUser}
	agentOne = domain.User{ID: 100, Name: "AgentOne", Role: domain.RoleAgent}
	agentTwo = domain.User{ID: 101, Name: "AgentTwo", Role: domain.RoleAgent}
	admin    = domain.User{ID: 900, Name: "Admin", Role: domain.RoleAdmin}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder(d events.Dispatcher) *eventRecorder {
	r := &eventRecorder{}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketStatusChanged,
		events.EventTicketNoteAdded, events.EventTicketRated, events.EventTicketAgentFlagged,
		events.EventChangeRequestRaised, events.EventChangeRequestDecided, events.EventChangeImplemented,
		events.EventChangeRequestRemoved, events.EventChangeRequestArchived,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
	return r
}

func (r *eventRecorder) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i := range r.events {
		out[i] = r.events[i].Type
	}
	return out
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	ctx     context.Context
	store   *repository.MemoryStore
	clock   *fakeClock
	events  *eventRecorder
	tickets *TicketService
	changes *ChangeRequestService
	reports *ReportService
	users   *UserService
}

func newFixture(t *testing.T, seed ...domain.User) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	if len(seed) == 0 {
		seed = []domain.User{alice, bob, agentOne, agentTwo, admin}
	}
	for i := range seed {
		u := seed[i]
		require.NoError(t, store.Users().Save(ctx, &u))
	}

	clock := newFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	dispatcher := events.NewInMemoryDispatcher()
	tickets := NewTicketService(TicketDependencies{Store: store, Dispatcher: dispatcher, Clock: clock.Now})
	changes := NewChangeRequestService(ChangeRequestDependencies{Store: store, Dispatcher: dispatcher, Clock: clock.Now})
	return &fixture{
		ctx:     ctx,
		store:   store,
		clock:   clock,
		events:  newEventRecorder(dispatcher),
		tickets: tickets,
		changes: changes,
		reports: NewReportService(ReportDependencies{Store: store, Tickets: tickets, ChangeRequests: changes}),
		users:   NewUserService(store, nil),
	}
}

func (f *fixture) createTicket(t *testing.T, requester domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(f.ctx, requester, TicketCreateInput{
		Title:       title,
		Description: title + " details",
		Category:    "hardware",
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) storedTicket(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(f.ctx, id)
	require.NoError(t, err)
	return ticket
}

func historyActions(ticket *domain.Ticket) []string {
	out := make([]string, len(ticket.History))
	for i := range ticket.History {
		out[i] = ticket.History[i].Action
	}
	return out
}
