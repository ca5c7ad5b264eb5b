package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrNotFound is returned by lookups when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// Store bundles the repositories of the tracker and scopes them to transactions.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	ChangeRequests() ChangeRequestRepository
	// WithinTx runs fn against a transactional view of the store. Records
	// read through that view are locked until fn returns; a non-nil error
	// discards every write fn made.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// TicketRepository encapsulates ticket persistence. Update overwrites the
// mutable scalar fields only; notes and history grow through AddNote and
// AddHistory.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	AddNote(ctx context.Context, ticketID int64, note domain.Note) error
	AddHistory(ctx context.Context, ticketID int64, entry domain.HistoryEntry) error
}

// ChangeRequestRepository stores active and archived change requests.
// GetByID, Update and Remove only see the active collection.
type ChangeRequestRepository interface {
	Create(ctx context.Context, cr *domain.ChangeRequest) error
	Update(ctx context.Context, cr *domain.ChangeRequest) error
	Remove(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.ChangeRequest, error)
	List(ctx context.Context) ([]domain.ChangeRequest, error)
	ListArchived(ctx context.Context) ([]domain.ChangeRequest, error)
	Archive(ctx context.Context, cr *domain.ChangeRequest) error
}
