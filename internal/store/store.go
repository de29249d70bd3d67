// Package store defines the data store contract used by the services. All
// reads and writes happen inside WithTx so multi-row changes commit together.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type Store interface {
	// WithTx runs fn atomically. If fn returns an error nothing it wrote is
	// visible afterwards. fn may be invoked more than once when the store
	// retries a serialization conflict, so it must not have side effects
	// outside the transaction.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Carts() CartRepository
	Messages() MessageRepository
	Comments() CommentRepository
	Users() UserRepository
	Reports() ReportRepository
}

type OrderRepository interface {
	// Get returns the order with its items and locks the row until the
	// transaction ends. Missing orders yield domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	Insert(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	// GetMany locks the returned rows. Unknown ids are omitted from the map.
	GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Insert(ctx context.Context, product *domain.Product) error
	// Update writes the catalog fields. Stock only changes via AdjustStock.
	Update(ctx context.Context, product *domain.Product) error
	// AdjustStock adds delta to stock and returns the new level. A change that
	// would leave stock negative fails with domain.ErrInsufficientStock.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

type CartRepository interface {
	Get(ctx context.Context, userID string) ([]domain.CartEntry, error)
	Upsert(ctx context.Context, entry domain.CartEntry) error
	Delete(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.OrderMessage) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderMessage, error)
}

type CommentRepository interface {
	Insert(ctx context.Context, c *domain.Comment) error
	// HasPurchased reports whether the user has a completed order containing
	// the product.
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
	ListByProduct(ctx context.Context, productID string) ([]domain.Comment, error)
}

type UserRepository interface {
	Insert(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// List returns every account, oldest first.
	List(ctx context.Context) ([]domain.User, error)
}

type ReportRepository interface {
	// SalesByProduct aggregates items of completed orders created in
	// [from, to); zero times leave the range open.
	SalesByProduct(ctx context.Context, from, to time.Time) ([]domain.ProductSales, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (map[time.Month]decimal.Decimal, error)
	// CustomerPurchases fills the order count, total and per-product lines
	// of userID's completed orders. The caller sets summary.User.
	CustomerPurchases(ctx context.Context, userID string) (*domain.CustomerSummary, error)
}
