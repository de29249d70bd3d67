package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type reportRepo struct {
	tx *sql.Tx
}

func (r *reportRepo) SalesByProduct(ctx context.Context, from, to time.Time) ([]domain.ProductSales, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT p.id, p.name, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price),
			rt.avg_rating, COALESCE(rt.rating_count, 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		LEFT JOIN (
			SELECT product_id, AVG(rating)::float8 AS avg_rating, COUNT(*) AS rating_count
			FROM comments
			GROUP BY product_id
		) rt ON rt.product_id = p.id
		WHERE o.status = 'completed'
			AND ($1::timestamptz IS NULL OR o.created_at >= $1)
			AND ($2::timestamptz IS NULL OR o.created_at < $2)
		GROUP BY p.id, p.name, rt.avg_rating, rt.rating_count
		ORDER BY 4 DESC, p.id
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sales := []domain.ProductSales{}
	for rows.Next() {
		var (
			s   domain.ProductSales
			avg sql.NullFloat64
		)
		if err := rows.Scan(&s.ProductID, &s.ProductName, &s.TotalQuantity, &s.TotalRevenue, &avg, &s.RatingCount); err != nil {
			return nil, err
		}
		if avg.Valid {
			v := avg.Float64
			s.AverageRating = &v
		}
		sales = append(sales, s)
	}

	return sales, rows.Err()
}

func (r *reportRepo) RevenueBetween(ctx context.Context, from, to time.Time) (map[time.Month]decimal.Decimal, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS month, SUM(total)
		FROM orders
		WHERE status = 'completed'
			AND ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY month
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	revenue := make(map[time.Month]decimal.Decimal)
	for rows.Next() {
		var (
			month int
			total decimal.Decimal
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		revenue[time.Month(month)] = total
	}

	return revenue, rows.Err()
}

func (r *reportRepo) CustomerPurchases(ctx context.Context, userID string) (*domain.CustomerSummary, error) {
	summary := &domain.CustomerSummary{Products: []domain.ProductPurchase{}}
	err := r.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE user_id = $1 AND status = 'completed'
	`, userID).Scan(&summary.CompletedOrders, &summary.TotalSpent)
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT p.id, p.name, SUM(oi.quantity), SUM(oi.quantity * oi.unit_price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.user_id = $1 AND o.status = 'completed'
		GROUP BY p.id, p.name
		ORDER BY 4 DESC, p.id
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p domain.ProductPurchase
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.Quantity, &p.Spent); err != nil {
			return nil, err
		}
		summary.Products = append(summary.Products, p)
	}

	return summary, rows.Err()
}
