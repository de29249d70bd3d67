package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

const orderColumns = `id, user_id, total, status, payment_method, payment_status,
	payment_proof_image, address_line1, address_line2, address_street,
	address_district, address_country, current_location, created_at, updated_at`

type orderRepo struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o             domain.Order
		paymentStatus sql.NullString
		proof         sql.NullString
		location      sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.PaymentMethod, &paymentStatus,
		&proof, &o.Address.Line1, &o.Address.Line2, &o.Address.Street,
		&o.Address.District, &o.Address.Country, &location, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = domain.PaymentStatus(paymentStatus.String)
	o.PaymentProofImage = proof.String
	o.CurrentLocation = location.String
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *orderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		if uuid.Validate(filter.UserID) != nil {
			return []domain.Order{}, nil
		}
		args = append(args, filter.UserID)
		where = append(where, "user_id = $"+itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+itoa(len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.tx.QueryContext(ctx, `
		SELECT order_id, id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *orderRepo) Insert(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	a := order.Address
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, order.ID, order.UserID, order.Total, order.Status, order.PaymentMethod,
		nullString(string(order.PaymentStatus)), nullString(order.PaymentProofImage),
		a.Line1, a.Line2, a.Street, a.District, a.Country,
		nullString(order.CurrentLocation), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err = r.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return mapErr(err)
		}
	}

	return nil
}

func (r *orderRepo) Update(ctx context.Context, order *domain.Order) error {
	result, err := r.tx.ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			payment_proof_image = $4,
			current_location = $5,
			updated_at = $6
		WHERE id = $1
	`, order.ID, order.Status, nullString(string(order.PaymentStatus)),
		nullString(order.PaymentProofImage), nullString(order.CurrentLocation), order.UpdatedAt)
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
