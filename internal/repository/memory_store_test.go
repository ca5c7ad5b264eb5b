package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var alice = domain.User{ID: 1, Name: "Alice", Role: domain.RoleUser}

func newTicket(now time.Time) *domain.Ticket {
	return &domain.Ticket{
		Requester: alice,
		Title:     "Printer broken",
		Status:    domain.TicketStatusRaised,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryTicketsAssignSequentialIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, second := newTicket(now), newTicket(now)
	require.NoError(t, store.Tickets().Create(ctx, first))
	require.NoError(t, store.Tickets().Create(ctx, second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	_, err := store.Tickets().GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTicketUpdateKeepsAuditTrail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	ticket := newTicket(now)
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	require.NoError(t, store.Tickets().AddHistory(ctx, ticket.ID, domain.HistoryEntry{Timestamp: now, Action: "Ticket raised", PerformedBy: "Alice"}))
	require.NoError(t, store.Tickets().AddNote(ctx, ticket.ID, domain.Note{AuthorID: 1, AuthorName: "Alice", Message: "hi", CreatedAt: now}))

	ticket.Status = domain.TicketStatusOpen
	ticket.History = nil
	require.NoError(t, store.Tickets().Update(ctx, ticket))

	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	require.Len(t, stored.History, 1)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, "Ticket raised", stored.History[0].Action)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := newTicket(time.Now())
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	loaded, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	loaded.Title = "changed"

	again, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer broken", again.Title)
}

func TestMemoryWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	ticket := newTicket(now)
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx Store) error {
		loaded, err := tx.Tickets().GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		loaded.Status = domain.TicketStatusResolved
		require.NoError(t, tx.Tickets().Update(ctx, loaded))
		require.NoError(t, tx.Tickets().AddHistory(ctx, loaded.ID, domain.HistoryEntry{Timestamp: now, Action: "Status changed to RESOLVED"}))
		require.NoError(t, tx.Tickets().Create(ctx, newTicket(now)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRaised, stored.Status)
	assert.Empty(t, stored.History)

	all, err := store.Tickets().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	next := newTicket(now)
	require.NoError(t, store.Tickets().Create(ctx, next))
	assert.Equal(t, int64(2), next.ID)
}

func TestMemoryWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	err := store.WithinTx(ctx, func(tx Store) error {
		return tx.Users().Save(ctx, &alice)
	})
	require.NoError(t, err)

	user, err := store.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, *user)
}

func TestMemoryChangeRequestArchiveMovesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cr := &domain.ChangeRequest{Requester: alice, Title: "Upgrade", Status: domain.ChangeStatusRaised, CreatedAt: time.Now()}
	require.NoError(t, store.ChangeRequests().Create(ctx, cr))
	require.NoError(t, store.ChangeRequests().Archive(ctx, cr))

	assert.True(t, cr.Archived)
	assert.Equal(t, domain.ChangeStatusArchived, cr.Status)

	active, err := store.ChangeRequests().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	archived, err := store.ChangeRequests().ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, archived[0].Archived)

	_, err = store.ChangeRequests().GetByID(ctx, cr.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.ChangeRequests().Remove(ctx, cr.ID), ErrNotFound)
	assert.ErrorIs(t, store.ChangeRequests().Archive(ctx, cr), ErrNotFound)
}

func TestMemoryUsersListSortedByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, u := range []domain.User{{ID: 100, Name: "AgentOne", Role: domain.RoleAgent}, alice, {ID: 900, Name: "Admin", Role: domain.RoleAdmin}} {
		u := u
		require.NoError(t, store.Users().Save(ctx, &u))
	}
	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []int64{1, 100, 900}, []int64{users[0].ID, users[1].ID, users[2].ID})
}
