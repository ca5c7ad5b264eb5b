package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketNoteAdded       EventType = "ticket_note_added"
	EventTicketRated           EventType = "ticket_rated"
	EventTicketAgentFlagged    EventType = "ticket_agent_flagged"
	EventChangeRequestRaised   EventType = "change_request_raised"
	EventChangeRequestRenewed  EventType = "change_request_renewed"
	EventChangeRequestDecided  EventType = "change_request_decided"
	EventChangeImplemented     EventType = "change_request_implemented"
	EventChangeRequestRemoved  EventType = "change_request_removed"
	EventChangeRequestArchived EventType = "change_requests_archived"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// ActorFrom converts a user into event actor metadata.
func ActorFrom(u domain.User) Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EntityID  int64     `json:"entity_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID   int64  `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Reason    string `json:"reason,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketNoteAddedPayload payload.
type TicketNoteAddedPayload struct {
	BodyPreview string `json:"body_preview"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	Rating       int    `json:"rating"`
	AgentID      *int64 `json:"agent_id,omitempty"`
	AgentFlagged bool   `json:"agent_flagged"`
}

// ChangeRequestPayload payload shared by change request events.
type ChangeRequestPayload struct {
	Title  string                     `json:"title,omitempty"`
	Status domain.ChangeRequestStatus `json:"status,omitempty"`
	Note   string                     `json:"note,omitempty"`
	Expiry *time.Time                 `json:"expiry,omitempty"`
}

// ChangeRequestsArchivedPayload payload.
type ChangeRequestsArchivedPayload struct {
	IDs []int64 `json:"ids"`
}
