package domain

import "time"

// ChangeRequestStatus enumerates lifecycle states for change requests.
type ChangeRequestStatus string

const (
	ChangeStatusRaised      ChangeRequestStatus = "RAISED"
	ChangeStatusApproved    ChangeRequestStatus = "APPROVED"
	ChangeStatusRejected    ChangeRequestStatus = "REJECTED"
	ChangeStatusImplemented ChangeRequestStatus = "IMPLEMENTED"
	ChangeStatusArchived    ChangeRequestStatus = "ARCHIVED"
)

// ChangeRequest tracks a planned change from raise to implementation.
type ChangeRequest struct {
	ID                 int64
	Requester          User
	Title              string
	Description        string
	Status             ChangeRequestStatus
	ExpiryDate         time.Time
	Archived           bool
	ImplementationNote *string
	CreatedAt          time.Time
}

// Quarter returns the 1-indexed calendar quarter the request was created in.
func (c *ChangeRequest) Quarter() int {
	return (int(c.CreatedAt.Month())-1)/3 + 1
}

// Clone returns a deep copy.
func (c ChangeRequest) Clone() ChangeRequest {
	out := c
	if c.ImplementationNote != nil {
		note := *c.ImplementationNote
		out.ImplementationNote = &note
	}
	return out
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
