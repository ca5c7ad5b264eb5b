package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type userRepository struct {
	db querier
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`

	_, err := r.db.Exec(ctx, query, user.ID, user.Name, string(user.Role))
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT id, name, role FROM users WHERE id=$1`

	var (
		user domain.User
		role string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &role); err != nil {
		return nil, notFoundOnNoRows(err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, role FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var (
			user domain.User
			role string
		)
		if err := rows.Scan(&user.ID, &user.Name, &role); err != nil {
			return nil, err
		}
		user.Role = domain.Role(role)
		result = append(result, user)
	}
	return result, rows.Err()
}
