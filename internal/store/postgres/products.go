package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

const productColumns = `id, name, description, price, stock, category_id, image_ref, created_at, updated_at`

type productRepo struct {
	tx *sql.Tx
}

func itoa(n int) string { return strconv.Itoa(n) }

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.CategoryID, &p.ImageRef, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *productRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	// A malformed id cannot name a row; leaving it in would fail the cast.
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if uuid.Validate(id) == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return map[string]domain.Product{}, nil
	}
	// Locking in id order keeps concurrent shipments from deadlocking.
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, pq.Array(valid))
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	products := make(map[string]domain.Product, len(valid))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepo) Insert(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageRef, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *productRepo) Update(ctx context.Context, p *domain.Product) error {
	result, err := r.tx.ExecContext(ctx, `
		UPDATE products SET
			name = $2,
			description = $3,
			price = $4,
			category_id = $5,
			image_ref = $6,
			updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, p.CategoryID, p.ImageRef, p.UpdatedAt)
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

func (r *productRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := r.tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, id, delta).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mapErr(err)
	}

	err = r.tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if err != nil {
		return 0, mapErr(err)
	}
	return stock, domain.ErrInsufficientStock
}
