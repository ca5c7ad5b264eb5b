package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func (r *ticketRepository) AddHistory(ctx context.Context, ticketID int64, entry domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, occurred_at, action, performed_by)
        VALUES ($1,$2,$3,$4)`
	_, err := r.db.Exec(ctx, query, ticketID, entry.Timestamp, entry.Action, entry.PerformedBy)
	return err
}

func (r *ticketRepository) AddNote(ctx context.Context, ticketID int64, note domain.Note) error {
	const query = `
        INSERT INTO ticket_notes (ticket_id, author_id, author_name, message, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Exec(ctx, query, ticketID, note.AuthorID, note.AuthorName, note.Message, note.CreatedAt)
	return err
}

// loadAudit fills notes and history for the given tickets, in insertion order.
func (r *ticketRepository) loadAudit(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]int64, len(tickets))
	index := make(map[int64]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
	}

	historyRows, err := r.db.Query(ctx, `
        SELECT ticket_id, occurred_at, action, performed_by
        FROM ticket_history WHERE ticket_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return err
	}
	defer historyRows.Close()
	for historyRows.Next() {
		var (
			ticketID int64
			entry    domain.HistoryEntry
		)
		if err := historyRows.Scan(&ticketID, &entry.Timestamp, &entry.Action, &entry.PerformedBy); err != nil {
			return err
		}
		i := index[ticketID]
		tickets[i].History = append(tickets[i].History, entry)
	}
	if err := historyRows.Err(); err != nil {
		return err
	}

	noteRows, err := r.db.Query(ctx, `
        SELECT ticket_id, author_id, author_name, message, created_at
        FROM ticket_notes WHERE ticket_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return err
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var (
			ticketID int64
			note     domain.Note
		)
		if err := noteRows.Scan(&ticketID, &note.AuthorID, &note.AuthorName, &note.Message, &note.CreatedAt); err != nil {
			return err
		}
		i := index[ticketID]
		tickets[i].Notes = append(tickets[i].Notes, note)
	}
	return noteRows.Err()
}
