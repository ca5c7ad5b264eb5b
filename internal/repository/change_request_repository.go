package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type changeRequestRepository struct {
	db       querier
	lockRows bool
}

const changeSelect = `
        SELECT c.id, c.title, c.description, c.status, c.expiry_date, c.archived,
               c.implementation_note, c.created_at,
               r.id, r.name, r.role
        FROM change_requests c
        JOIN users r ON r.id = c.requester_id`

func (r *changeRequestRepository) Create(ctx context.Context, cr *domain.ChangeRequest) error {
	const query = `
        INSERT INTO change_requests (requester_id, title, description, status, expiry_date, archived,
                                     implementation_note, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		cr.Requester.ID,
		cr.Title,
		cr.Description,
		string(cr.Status),
		cr.ExpiryDate,
		cr.Archived,
		cr.ImplementationNote,
		cr.CreatedAt,
	).Scan(&cr.ID)
}

func (r *changeRequestRepository) Update(ctx context.Context, cr *domain.ChangeRequest) error {
	const query = `
        UPDATE change_requests SET title=$1, description=$2, status=$3, expiry_date=$4, implementation_note=$5
        WHERE id=$6 AND archived=false`
	cmd, err := r.db.Exec(ctx, query,
		cr.Title,
		cr.Description,
		string(cr.Status),
		cr.ExpiryDate,
		cr.ImplementationNote,
		cr.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *changeRequestRepository) Remove(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM change_requests WHERE id=$1 AND archived=false`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *changeRequestRepository) GetByID(ctx context.Context, id int64) (*domain.ChangeRequest, error) {
	query := changeSelect + ` WHERE c.id=$1 AND c.archived=false` + forUpdate(r.lockRows, "c")
	cr, err := scanChangeRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOnNoRows(err)
	}
	return cr, nil
}

func (r *changeRequestRepository) List(ctx context.Context) ([]domain.ChangeRequest, error) {
	return r.list(ctx, false)
}

func (r *changeRequestRepository) ListArchived(ctx context.Context) ([]domain.ChangeRequest, error) {
	return r.list(ctx, true)
}

func (r *changeRequestRepository) list(ctx context.Context, archived bool) ([]domain.ChangeRequest, error) {
	rows, err := r.db.Query(ctx, changeSelect+` WHERE c.archived=$1 ORDER BY c.id`, archived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cr)
	}
	return result, rows.Err()
}

func (r *changeRequestRepository) Archive(ctx context.Context, cr *domain.ChangeRequest) error {
	const query = `
        UPDATE change_requests SET archived=true, status=$1
        WHERE id=$2 AND archived=false`
	cmd, err := r.db.Exec(ctx, query, string(domain.ChangeStatusArchived), cr.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	cr.Archived = true
	cr.Status = domain.ChangeStatusArchived
	return nil
}

func scanChangeRequest(row pgx.Row) (*domain.ChangeRequest, error) {
	var (
		cr            domain.ChangeRequest
		status        string
		requesterRole string
	)
	if err := row.Scan(
		&cr.ID,
		&cr.Title,
		&cr.Description,
		&status,
		&cr.ExpiryDate,
		&cr.Archived,
		&cr.ImplementationNote,
		&cr.CreatedAt,
		&cr.Requester.ID,
		&cr.Requester.Name,
		&requesterRole,
	); err != nil {
		return nil, err
	}
	cr.Status = domain.ChangeRequestStatus(status)
	cr.Requester.Role = domain.Role(requesterRole)
	cr.ExpiryDate = domain.DateOf(cr.ExpiryDate)
	return &cr, nil
}
