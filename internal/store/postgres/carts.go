package postgres

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type cartRepo struct {
	tx *sql.Tx
}

func (r *cartRepo) Get(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT user_id, product_id, quantity
		FROM shopping_cart
		WHERE user_id = $1
		ORDER BY product_id
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.CartEntry{}
	for rows.Next() {
		var e domain.CartEntry
		if err := rows.Scan(&e.UserID, &e.ProductID, &e.Quantity); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *cartRepo) Upsert(ctx context.Context, e domain.CartEntry) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO shopping_cart (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, e.UserID, e.ProductID, e.Quantity)
	return mapErr(err)
}

func (r *cartRepo) Delete(ctx context.Context, userID, productID string) error {
	result, err := r.tx.ExecContext(ctx, `
		DELETE FROM shopping_cart WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return mapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM shopping_cart WHERE user_id = $1`, userID)
	return mapErr(err)
}
