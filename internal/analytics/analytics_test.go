package analytics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
	"github.com/joao-fontenele/bookshelf-orders/internal/store/memory"
)

var admin = domain.Session{UserID: "admin", Role: domain.RoleAdmin}

func order(status domain.OrderStatus, at time.Time, lines ...domain.OrderItem) *domain.Order {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return &domain.Order{
		UserID:    "u1",
		Status:    status,
		Items:     lines,
		Total:     total,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func line(productID string, qty int, price string) domain.OrderItem {
	return domain.OrderItem{ProductID: productID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func seeded(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	err := st.WithTx(ctx, func(tx store.Tx) error {
		for _, p := range []domain.Product{
			{ID: "a", Name: "Book A", Price: decimal.NewFromInt(10), Stock: 10},
			{ID: "b", Name: "Book B", Price: decimal.NewFromInt(20), Stock: 10},
		} {
			if err := tx.Products().Insert(ctx, &p); err != nil {
				return err
			}
		}

		jan := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
		mar := time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC)
		next := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
		orders := []*domain.Order{
			order(domain.OrderStatusCompleted, jan, line("a", 2, "10"), line("b", 1, "20")),
			order(domain.OrderStatusCompleted, mar, line("a", 1, "12")),
			order(domain.OrderStatusCompleted, next, line("b", 3, "20")),
			order(domain.OrderStatusShipped, jan, line("a", 5, "10")),
			order(domain.OrderStatusCancelled, mar, line("b", 5, "20")),
		}
		for _, o := range orders {
			if err := tx.Orders().Insert(ctx, o); err != nil {
				return err
			}
		}

		for i, rating := range []int{5, 4} {
			c := &domain.Comment{UserID: string(rune('x' + i)), ProductID: "a", Rating: rating, CreatedAt: jan}
			if err := tx.Comments().Insert(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return NewService(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestComputeSalesAggregate(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	t.Run("all time", func(t *testing.T) {
		sales, err := svc.ComputeSalesAggregate(ctx, admin, domain.SalesPeriod{})
		require.NoError(t, err)
		require.Len(t, sales, 2)

		assert.Equal(t, "b", sales[0].ProductID)
		assert.Equal(t, 4, sales[0].TotalQuantity)
		assert.Equal(t, "80.00", sales[0].TotalRevenue.StringFixed(2))
		assert.Nil(t, sales[0].AverageRating)

		assert.Equal(t, "a", sales[1].ProductID)
		assert.Equal(t, 3, sales[1].TotalQuantity)
		assert.Equal(t, "32.00", sales[1].TotalRevenue.StringFixed(2))
		require.NotNil(t, sales[1].AverageRating)
		assert.InDelta(t, 4.5, *sales[1].AverageRating, 1e-9)
		assert.Equal(t, 2, sales[1].RatingCount)
	})

	t.Run("single month", func(t *testing.T) {
		sales, err := svc.ComputeSalesAggregate(ctx, admin, domain.SalesPeriod{Year: 2024, Month: 3})
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, "a", sales[0].ProductID)
		assert.Equal(t, "12.00", sales[0].TotalRevenue.StringFixed(2))
	})

	t.Run("empty period", func(t *testing.T) {
		sales, err := svc.ComputeSalesAggregate(ctx, admin, domain.SalesPeriod{Year: 2019})
		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("invalid periods", func(t *testing.T) {
		for _, p := range []domain.SalesPeriod{{Month: 3}, {Year: 2024, Month: 13}, {Year: 1200}} {
			_, err := svc.ComputeSalesAggregate(ctx, admin, p)
			assert.ErrorIs(t, err, domain.ErrValidation, "%+v", p)
		}
	})

	t.Run("customers are refused", func(t *testing.T) {
		_, err := svc.ComputeSalesAggregate(ctx, domain.Session{UserID: "u1", Role: domain.RoleCustomer}, domain.SalesPeriod{})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestComputeMonthlyRevenue(t *testing.T) {
	svc := seeded(t)

	rev, err := svc.ComputeMonthlyRevenue(context.Background(), admin, 2024)
	require.NoError(t, err)
	assert.Equal(t, "40.00", rev.Months[0].StringFixed(2))
	assert.True(t, rev.Months[1].IsZero())
	assert.Equal(t, "12.00", rev.Months[2].StringFixed(2))
	assert.Equal(t, "52.00", rev.Total.StringFixed(2))

	_, err = svc.ComputeMonthlyRevenue(context.Background(), admin, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHandler(t *testing.T) {
	h := NewHandler(seeded(t), slog.New(slog.NewTextHandler(io.Discard, nil)))

	do := func(fn http.HandlerFunc, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = req.WithContext(auth.WithSession(req.Context(), admin))
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	rec := do(h.HandleSales, "/analytics/sales?year=2024")
	require.Equal(t, http.StatusOK, rec.Code)
	var sales []domain.ProductSales
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sales))
	assert.Len(t, sales, 2)

	rec = do(h.HandleSales, "/analytics/sales?year=last")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.HandleRevenue, "/analytics/revenue?year=2025")
	require.Equal(t, http.StatusOK, rec.Code)
	var rev MonthlyRevenue
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rev))
	assert.Equal(t, "60.00", rev.Total.StringFixed(2))
}
