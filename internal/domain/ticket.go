package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusRaised           TicketStatus = "RAISED"
	TicketStatusOpen             TicketStatus = "OPEN"
	TicketStatusInProgress       TicketStatus = "IN_PROGRESS"
	TicketStatusAwaitingResponse TicketStatus = "AWAITING_RESPONSE"
	TicketStatusResolved         TicketStatus = "RESOLVED"
	TicketStatusReopened         TicketStatus = "REOPENED"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusRaised, TicketStatusOpen, TicketStatusInProgress,
		TicketStatusAwaitingResponse, TicketStatusResolved, TicketStatusReopened:
		return true
	}
	return false
}

// Active reports whether a ticket in this status counts towards agent load.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress || s == TicketStatusAwaitingResponse
}

// Ticket is the aggregate for support requests. It owns its notes and history.
type Ticket struct {
	ID            int64
	Requester     User
	AssignedAgent *User
	Category      string
	Title         string
	Description   string
	Status        TicketStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Rating        *int
	AgentFlagged  bool
	Notes         []Note
	History       []HistoryEntry
}

// AssignedTo reports whether the ticket is assigned to the given user id.
func (t *Ticket) AssignedTo(userID int64) bool {
	return t.AssignedAgent != nil && t.AssignedAgent.ID == userID
}

// RequestedBy reports whether the given user raised the ticket.
func (t *Ticket) RequestedBy(userID int64) bool {
	return t.Requester.ID == userID
}

// Clone returns a deep copy so callers can mutate without aliasing storage.
func (t Ticket) Clone() Ticket {
	out := t
	if t.AssignedAgent != nil {
		agent := *t.AssignedAgent
		out.AssignedAgent = &agent
	}
	if t.Rating != nil {
		rating := *t.Rating
		out.Rating = &rating
	}
	out.Notes = append([]Note(nil), t.Notes...)
	out.History = append([]HistoryEntry(nil), t.History...)
	return out
}
