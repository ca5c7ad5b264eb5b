package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type ticketRepository struct {
	db       querier
	lockRows bool
}

const ticketSelect = `
        SELECT t.id, t.category, t.title, t.description, t.status, t.created_at, t.updated_at,
               t.rating, t.agent_flagged,
               r.id, r.name, r.role,
               a.id, a.name, a.role
        FROM tickets t
        JOIN users r ON r.id = t.requester_id
        LEFT JOIN users a ON a.id = t.assigned_agent_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (requester_id, assigned_agent_id, category, title, description, status,
                             created_at, updated_at, rating, agent_flagged)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		ticket.Requester.ID,
		agentID(ticket),
		ticket.Category,
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.Rating,
		ticket.AgentFlagged,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_agent_id=$1, category=$2, title=$3, description=$4, status=$5,
            updated_at=$6, rating=$7, agent_flagged=$8
        WHERE id=$9`
	cmd, err := r.db.Exec(ctx, query,
		agentID(ticket),
		ticket.Category,
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		ticket.UpdatedAt,
		ticket.Rating,
		ticket.AgentFlagged,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := ticketSelect + ` WHERE t.id=$1` + forUpdate(r.lockRows, "t")
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOnNoRows(err)
	}
	tickets := []domain.Ticket{*ticket}
	if err := r.loadAudit(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, ticketSelect+` ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadAudit(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		status        string
		rating        *int32
		requesterRole string
		agentID       *int64
		agentName     *string
		agentRole     *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Category,
		&ticket.Title,
		&ticket.Description,
		&status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&rating,
		&ticket.AgentFlagged,
		&ticket.Requester.ID,
		&ticket.Requester.Name,
		&requesterRole,
		&agentID,
		&agentName,
		&agentRole,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.Requester.Role = domain.Role(requesterRole)
	if rating != nil {
		v := int(*rating)
		ticket.Rating = &v
	}
	if agentID != nil {
		ticket.AssignedAgent = &domain.User{ID: *agentID, Name: deref(agentName), Role: domain.Role(deref(agentRole))}
	}
	return &ticket, nil
}

func agentID(ticket *domain.Ticket) *int64 {
	if ticket.AssignedAgent == nil {
		return nil
	}
	id := ticket.AssignedAgent.ID
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
