package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type userRepo struct {
	tx *sql.Tx
}

func (r *userRepo) Insert(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.Role, u.CreatedAt)
	return mapErr(err)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.tx.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, role, created_at
		FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, email, username, password_hash, role, created_at
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
