// Package users gives admins a view of customer accounts and what each
// customer has bought.
package users

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

var tracer = otel.Tracer("users")

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) ListUsers(ctx context.Context, sess domain.Session) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "users.list")
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}

	var users []domain.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.Users().List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetCustomerSummary returns the account with its completed order count,
// total spent and the products bought.
func (s *Service) GetCustomerSummary(ctx context.Context, sess domain.Session, id string) (*domain.CustomerSummary, error) {
	ctx, span := tracer.Start(ctx, "users.summary", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}

	var summary *domain.CustomerSummary
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		summary, err = tx.Reports().CustomerPurchases(ctx, u.ID)
		if err != nil {
			return err
		}
		summary.User = *u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer summary computed", "user_id", id, "orders", summary.CompletedOrders, "total", summary.TotalSpent.StringFixed(2))
	return summary, nil
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
