package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type memoryState struct {
	users        map[int64]domain.User
	tickets      map[int64]domain.Ticket
	changes      map[int64]domain.ChangeRequest
	archived     map[int64]domain.ChangeRequest
	nextTicketID int64
	nextChangeID int64
}

func (s *memoryState) clone() memoryState {
	out := memoryState{
		users:        make(map[int64]domain.User, len(s.users)),
		tickets:      make(map[int64]domain.Ticket, len(s.tickets)),
		changes:      make(map[int64]domain.ChangeRequest, len(s.changes)),
		archived:     make(map[int64]domain.ChangeRequest, len(s.archived)),
		nextTicketID: s.nextTicketID,
		nextChangeID: s.nextChangeID,
	}
	for id, u := range s.users {
		out.users[id] = u
	}
	for id, t := range s.tickets {
		out.tickets[id] = t.Clone()
	}
	for id, cr := range s.changes {
		out.changes[id] = cr.Clone()
	}
	for id, cr := range s.archived {
		out.archived[id] = cr.Clone()
	}
	return out
}

type memoryDB struct {
	mu sync.RWMutex
	st memoryState
}

// MemoryStore keeps every record in process memory. Transactions hold the
// store-wide write lock and restore a snapshot when they fail.
type MemoryStore struct {
	db   *memoryDB
	inTx bool
}

// NewMemoryStore returns an empty store whose id sequences start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memoryDB{st: memoryState{
		users:        map[int64]domain.User{},
		tickets:      map[int64]domain.Ticket{},
		changes:      map[int64]domain.ChangeRequest{},
		archived:     map[int64]domain.ChangeRequest{},
		nextTicketID: 1,
		nextChangeID: 1,
	}}}
}

func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

func (s *MemoryStore) ChangeRequests() ChangeRequestRepository { return memoryChanges{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.st.clone()
	if err := fn(&MemoryStore{db: s.db, inTx: true}); err != nil {
		s.db.st = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) read(fn func(st *memoryState) error) error {
	if !s.inTx {
		s.db.mu.RLock()
		defer s.db.mu.RUnlock()
	}
	return fn(&s.db.st)
}

func (s *MemoryStore) write(fn func(st *memoryState) error) error {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	return fn(&s.db.st)
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Save(_ context.Context, user *domain.User) error {
	return r.s.write(func(st *memoryState) error {
		st.users[user.ID] = *user
		return nil
	})
}

func (r memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(st *memoryState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r memoryUsers) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	err := r.s.read(func(st *memoryState) error {
		out = make([]domain.User, 0, len(st.users))
		for _, u := range st.users {
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.s.write(func(st *memoryState) error {
		ticket.ID = st.nextTicketID
		st.nextTicketID++
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.s.write(func(st *memoryState) error {
		stored, ok := st.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		next := ticket.Clone()
		next.Notes = stored.Notes
		next.History = stored.History
		next.Requester = stored.Requester
		next.CreatedAt = stored.CreatedAt
		st.tickets[ticket.ID] = next
		return nil
	})
}

func (r memoryTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.read(func(st *memoryState) error {
		t, ok := st.tickets[id]
		if !ok {
			return ErrNotFound
		}
		clone := t.Clone()
		out = &clone
		return nil
	})
	return out, err
}

func (r memoryTickets) List(_ context.Context) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.s.read(func(st *memoryState) error {
		out = make([]domain.Ticket, 0, len(st.tickets))
		for _, t := range st.tickets {
			out = append(out, t.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r memoryTickets) AddNote(_ context.Context, ticketID int64, note domain.Note) error {
	return r.s.write(func(st *memoryState) error {
		t, ok := st.tickets[ticketID]
		if !ok {
			return ErrNotFound
		}
		t.Notes = append(append([]domain.Note(nil), t.Notes...), note)
		st.tickets[ticketID] = t
		return nil
	})
}

func (r memoryTickets) AddHistory(_ context.Context, ticketID int64, entry domain.HistoryEntry) error {
	return r.s.write(func(st *memoryState) error {
		t, ok := st.tickets[ticketID]
		if !ok {
			return ErrNotFound
		}
		t.History = append(append([]domain.HistoryEntry(nil), t.History...), entry)
		st.tickets[ticketID] = t
		return nil
	})
}

type memoryChanges struct{ s *MemoryStore }

func (r memoryChanges) Create(_ context.Context, cr *domain.ChangeRequest) error {
	return r.s.write(func(st *memoryState) error {
		cr.ID = st.nextChangeID
		st.nextChangeID++
		st.changes[cr.ID] = cr.Clone()
		return nil
	})
}

func (r memoryChanges) Update(_ context.Context, cr *domain.ChangeRequest) error {
	return r.s.write(func(st *memoryState) error {
		stored, ok := st.changes[cr.ID]
		if !ok {
			return ErrNotFound
		}
		next := cr.Clone()
		next.Requester = stored.Requester
		next.CreatedAt = stored.CreatedAt
		st.changes[cr.ID] = next
		return nil
	})
}

func (r memoryChanges) Remove(_ context.Context, id int64) error {
	return r.s.write(func(st *memoryState) error {
		if _, ok := st.changes[id]; !ok {
			return ErrNotFound
		}
		delete(st.changes, id)
		return nil
	})
}

func (r memoryChanges) GetByID(_ context.Context, id int64) (*domain.ChangeRequest, error) {
	var out *domain.ChangeRequest
	err := r.s.read(func(st *memoryState) error {
		cr, ok := st.changes[id]
		if !ok {
			return ErrNotFound
		}
		clone := cr.Clone()
		out = &clone
		return nil
	})
	return out, err
}

func (r memoryChanges) List(_ context.Context) ([]domain.ChangeRequest, error) {
	return r.list(func(st *memoryState) map[int64]domain.ChangeRequest { return st.changes })
}

func (r memoryChanges) ListArchived(_ context.Context) ([]domain.ChangeRequest, error) {
	return r.list(func(st *memoryState) map[int64]domain.ChangeRequest { return st.archived })
}

func (r memoryChanges) list(pick func(st *memoryState) map[int64]domain.ChangeRequest) ([]domain.ChangeRequest, error) {
	var out []domain.ChangeRequest
	err := r.s.read(func(st *memoryState) error {
		rows := pick(st)
		out = make([]domain.ChangeRequest, 0, len(rows))
		for _, cr := range rows {
			out = append(out, cr.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r memoryChanges) Archive(_ context.Context, cr *domain.ChangeRequest) error {
	return r.s.write(func(st *memoryState) error {
		stored, ok := st.changes[cr.ID]
		if !ok {
			return ErrNotFound
		}
		stored.Archived = true
		stored.Status = domain.ChangeStatusArchived
		delete(st.changes, cr.ID)
		st.archived[cr.ID] = stored
		cr.Archived = true
		cr.Status = domain.ChangeStatusArchived
		return nil
	})
}
