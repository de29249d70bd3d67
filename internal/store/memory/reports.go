package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type reportRepo struct{ d *dataset }

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func (r reportRepo) SalesByProduct(_ context.Context, from, to time.Time) ([]domain.ProductSales, error) {
	sales := make(map[string]*domain.ProductSales)
	for _, o := range r.d.orders {
		if o.Status != domain.OrderStatusCompleted || !inRange(o.CreatedAt, from, to) {
			continue
		}
		for _, item := range o.Items {
			s, ok := sales[item.ProductID]
			if !ok {
				s = &domain.ProductSales{
					ProductID:    item.ProductID,
					ProductName:  r.d.products[item.ProductID].Name,
					TotalRevenue: decimal.Zero,
				}
				sales[item.ProductID] = s
			}
			s.TotalQuantity += item.Quantity
			s.TotalRevenue = s.TotalRevenue.Add(item.Subtotal())
		}
	}

	type ratingSum struct{ sum, count int }
	ratings := make(map[string]*ratingSum)
	for _, c := range r.d.comments {
		rs, ok := ratings[c.ProductID]
		if !ok {
			rs = &ratingSum{}
			ratings[c.ProductID] = rs
		}
		rs.sum += c.Rating
		rs.count++
	}

	out := make([]domain.ProductSales, 0, len(sales))
	for id, s := range sales {
		if rs, ok := ratings[id]; ok {
			avg := float64(rs.sum) / float64(rs.count)
			s.AverageRating = &avg
			s.RatingCount = rs.count
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalRevenue.Equal(out[j].TotalRevenue) {
			return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (r reportRepo) RevenueBetween(_ context.Context, from, to time.Time) (map[time.Month]decimal.Decimal, error) {
	out := make(map[time.Month]decimal.Decimal)
	for _, o := range r.d.orders {
		if o.Status != domain.OrderStatusCompleted || !inRange(o.CreatedAt, from, to) {
			continue
		}
		m := o.CreatedAt.UTC().Month()
		out[m] = out[m].Add(o.Total)
	}
	return out, nil
}

func (r reportRepo) CustomerPurchases(_ context.Context, userID string) (*domain.CustomerSummary, error) {
	summary := &domain.CustomerSummary{TotalSpent: decimal.Zero, Products: []domain.ProductPurchase{}}
	lines := make(map[string]*domain.ProductPurchase)
	for _, o := range r.d.orders {
		if o.UserID != userID || o.Status != domain.OrderStatusCompleted {
			continue
		}
		summary.CompletedOrders++
		summary.TotalSpent = summary.TotalSpent.Add(o.Total)
		for _, item := range o.Items {
			p, ok := lines[item.ProductID]
			if !ok {
				p = &domain.ProductPurchase{
					ProductID:   item.ProductID,
					ProductName: r.d.products[item.ProductID].Name,
					Spent:       decimal.Zero,
				}
				lines[item.ProductID] = p
			}
			p.Quantity += item.Quantity
			p.Spent = p.Spent.Add(item.Subtotal())
		}
	}

	for _, p := range lines {
		summary.Products = append(summary.Products, *p)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		a, b := summary.Products[i], summary.Products[j]
		if !a.Spent.Equal(b.Spent) {
			return a.Spent.GreaterThan(b.Spent)
		}
		return a.ProductID < b.ProductID
	})
	return summary, nil
}
