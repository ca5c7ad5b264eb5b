package domain

import "time"

// HistoryEntry is an immutable audit trail entry.
type HistoryEntry struct {
	Timestamp   time.Time
	Action      string
	PerformedBy string
}

// Note is a message left on a ticket by any participant.
type Note struct {
	AuthorID   int64
	AuthorName string
	Message    string
	CreatedAt  time.Time
}
