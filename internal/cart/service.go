// Package cart keeps each customer's shopping cart. A line's quantity never
// exceeds the product's stock at the time it is written.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Stock     int             `json:"stock"`
}

// Cart is a priced view of the stored entries at current catalog prices.
type Cart struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// AddToCart increases the line for productID by qty, creating it if needed.
func (s *Service) AddToCart(ctx context.Context, sess domain.Session, productID string, qty int) (*Cart, error) {
	return s.write(ctx, sess, productID, qty, func(current int) int { return current + qty })
}

// UpdateCartItem sets the line for productID to qty.
func (s *Service) UpdateCartItem(ctx context.Context, sess domain.Session, productID string, qty int) (*Cart, error) {
	return s.write(ctx, sess, productID, qty, func(int) int { return qty })
}

func (s *Service) RemoveCartItem(ctx context.Context, sess domain.Session, productID string) (*Cart, error) {
	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	var cart *Cart
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Carts().Delete(ctx, sess.UserID, productID); err != nil {
			return err
		}
		var err error
		cart, err = load(ctx, tx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart item removed", "user_id", sess.UserID, "product_id", productID)
	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, sess domain.Session) (*Cart, error) {
	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	var cart *Cart
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		cart, err = load(ctx, tx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) write(ctx context.Context, sess domain.Session, productID string, qty int, next func(current int) int) (*Cart, error) {
	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if productID == "" {
		return nil, domain.Invalid("product_id", "is required")
	}
	if qty <= 0 {
		return nil, domain.Invalid("quantity", "must be greater than 0")
	}

	var cart *Cart
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}

		entries, err := tx.Carts().Get(ctx, sess.UserID)
		if err != nil {
			return err
		}
		current := 0
		for _, e := range entries {
			if e.ProductID == productID {
				current = e.Quantity
			}
		}

		want := next(current)
		if want > p.Stock {
			return &domain.InsufficientStockError{Shortages: []domain.Shortage{{
				ProductID: p.ID,
				Name:      p.Name,
				Required:  want,
				Available: p.Stock,
			}}}
		}

		if err := tx.Carts().Upsert(ctx, domain.CartEntry{UserID: sess.UserID, ProductID: productID, Quantity: want}); err != nil {
			return fmt.Errorf("save cart line: %w", err)
		}
		cart, err = load(ctx, tx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart updated", "user_id", sess.UserID, "product_id", productID)
	return cart, nil
}

func load(ctx context.Context, tx store.Tx, userID string) (*Cart, error) {
	entries, err := tx.Carts().Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}
	products, err := tx.Products().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	cart := &Cart{Lines: make([]Line, 0, len(entries)), Total: decimal.Zero}
	for _, e := range entries {
		p, ok := products[e.ProductID]
		if !ok {
			continue
		}
		line := Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  e.Quantity,
			Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(e.Quantity))),
			Stock:     p.Stock,
		}
		cart.Lines = append(cart.Lines, line)
		cart.Total = cart.Total.Add(line.Subtotal)
	}
	return cart, nil
}
