// Package inventory owns the book catalog: products, their stock counts and
// customer ratings. Shipping decrements stock through the orders package;
// everything else that moves stock goes through Restock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

var tracer = otel.Tracer("inventory")

type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProductInput carries the catalog fields of a product. Stock is only read on
// create.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  string          `json:"category_id,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty" validate:"max=500"`
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := domain.Validate(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return domain.Invalid("price", "must be greater than 0")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return domain.Invalid("price", "must have at most 2 decimal places")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, sess domain.Session, in ProductInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "inventory.create_product")
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageRef:    in.ImageRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Products().Insert(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("product.id", p.ID))
	s.logger.Info("product created", "product_id", p.ID, "stock", p.Stock)
	return p, nil
}

// UpdateProduct replaces the catalog fields. Stock is left as it is.
func (s *Service) UpdateProduct(ctx context.Context, sess domain.Session, id string, in ProductInput) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "inventory.update_product", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var p *domain.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.Products().Get(ctx, id)
		if err != nil {
			return err
		}
		p.Name = in.Name
		p.Description = in.Description
		p.Price = in.Price
		p.CategoryID = in.CategoryID
		p.ImageRef = in.ImageRef
		p.UpdatedAt = s.now()
		return tx.Products().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product updated", "product_id", id)
	return p, nil
}

// Restock moves a product's stock by delta. A negative delta that would take
// stock below zero is refused.
func (s *Service) Restock(ctx context.Context, sess domain.Session, id string, delta int) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "inventory.restock", trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int("stock.delta", delta),
	))
	defer span.End()

	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, domain.Invalid("delta", "must not be zero")
	}

	var p *domain.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Products().AdjustStock(ctx, id, delta); err != nil {
			return err
		}
		var err error
		p, err = tx.Products().Get(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: stock cannot go below zero", domain.ErrInsufficientStock)
		}
		return nil, err
	}

	s.logger.Info("product restocked", "product_id", id, "delta", delta, "stock", p.Stock)
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		products, err = tx.Products().List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p *domain.Product
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.Products().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type CommentInput struct {
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Text   string `json:"text"`
}

const maxCommentLength = 2000

// AddComment records a rating for a product the caller has received in a
// completed order. Each customer rates a product once.
func (s *Service) AddComment(ctx context.Context, sess domain.Session, productID string, in CommentInput) (*domain.Comment, error) {
	ctx, span := tracer.Start(ctx, "inventory.add_comment", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Text) > maxCommentLength {
		return nil, domain.Invalid("text", "must be at most 2000 characters")
	}

	c := &domain.Comment{
		UserID:    sess.UserID,
		ProductID: productID,
		Rating:    in.Rating,
		Text:      in.Text,
		CreatedAt: s.now(),
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Products().Get(ctx, productID); err != nil {
			return err
		}
		purchased, err := tx.Comments().HasPurchased(ctx, sess.UserID, productID)
		if err != nil {
			return err
		}
		if !purchased {
			return fmt.Errorf("%w: only customers with a completed order for this book can rate it", domain.ErrForbidden)
		}
		return tx.Comments().Insert(ctx, c)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: you have already rated this book", domain.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("comment added", "product_id", productID, "user_id", sess.UserID, "rating", c.Rating)
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, productID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Products().Get(ctx, productID); err != nil {
			return err
		}
		var err error
		comments, err = tx.Comments().ListByProduct(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
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
