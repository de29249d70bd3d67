package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type commentRepo struct {
	tx *sql.Tx
}

func (r *commentRepo) Insert(ctx context.Context, c *domain.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO comments (id, user_id, product_id, rating, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, c.ProductID, c.Rating, c.Text, c.CreatedAt)
	return mapErr(err)
}

func (r *commentRepo) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = 'completed'
		)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return false, mapErr(err)
	}
	return exists, nil
}

func (r *commentRepo) ListByProduct(ctx context.Context, productID string) ([]domain.Comment, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, user_id, product_id, rating, text, created_at
		FROM comments
		WHERE product_id = $1
		ORDER BY created_at DESC
	`, productID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Rating, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
