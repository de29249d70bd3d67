// Package analytics reports sales over completed orders. The aggregation runs
// inside the store; this package only validates periods and shapes results.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

var tracer = otel.Tracer("analytics")

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// ComputeSalesAggregate groups completed order lines by product, optionally
// bounded to a year or a single month of a year.
func (s *Service) ComputeSalesAggregate(ctx context.Context, sess domain.Session, period domain.SalesPeriod) ([]domain.ProductSales, error) {
	ctx, span := tracer.Start(ctx, "analytics.sales_aggregate", trace.WithAttributes(
		attribute.Int("period.year", period.Year),
		attribute.Int("period.month", period.Month),
	))
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := domain.Validate(period); err != nil {
		return nil, err
	}
	if period.Month != 0 && period.Year == 0 {
		return nil, domain.Invalid("year", "is required when month is set")
	}

	from, to, _ := period.Bounds()

	var sales []domain.ProductSales
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		sales, err = tx.Reports().SalesByProduct(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sales aggregate computed", "year", period.Year, "month", period.Month, "products", len(sales))
	return sales, nil
}

type MonthlyRevenue struct {
	Year   int                 `json:"year"`
	Months [12]decimal.Decimal `json:"months"`
	Total  decimal.Decimal     `json:"total"`
}

// ComputeMonthlyRevenue sums completed order totals per calendar month (UTC)
// of year. Months without sales are zero.
func (s *Service) ComputeMonthlyRevenue(ctx context.Context, sess domain.Session, year int) (*MonthlyRevenue, error) {
	ctx, span := tracer.Start(ctx, "analytics.monthly_revenue", trace.WithAttributes(attribute.Int("period.year", year)))
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := domain.Validate(domain.SalesPeriod{Year: year}); err != nil {
		return nil, err
	}
	if year == 0 {
		return nil, domain.Invalid("year", "is required")
	}

	from, to, _ := domain.SalesPeriod{Year: year}.Bounds()

	var byMonth map[time.Month]decimal.Decimal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		byMonth, err = tx.Reports().RevenueBetween(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &MonthlyRevenue{Year: year, Total: decimal.Zero}
	for i := range out.Months {
		v := byMonth[time.Month(i+1)]
		out.Months[i] = v
		out.Total = out.Total.Add(v)
	}

	s.logger.Info("monthly revenue computed", "year", year, "total", out.Total.StringFixed(2))
	return out, nil
}

func requireAdmin(sess domain.Session) error {
	if sess.UserID == "" {
		return domain.ErrUnauthorized
	}
	if !sess.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}
