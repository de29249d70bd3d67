// Package memory is an in-process store used for local runs and tests. A
// transaction works on a private copy of the data set that replaces the
// shared one only on success, under a single writer lock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

type Store struct {
	mu   sync.Mutex
	data *dataset
}

func New() *Store {
	return &Store{data: newDataset()}
}

type dataset struct {
	orders   map[string]domain.Order
	products map[string]domain.Product
	carts    map[string]map[string]int
	messages []domain.OrderMessage
	comments []domain.Comment
	users    map[string]domain.User
}

func newDataset() *dataset {
	return &dataset{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		carts:    make(map[string]map[string]int),
		users:    make(map[string]domain.User),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for user, lines := range d.carts {
		m := make(map[string]int, len(lines))
		for p, q := range lines {
			m[p] = q
		}
		c.carts[user] = m
	}
	c.messages = append([]domain.OrderMessage(nil), d.messages...)
	c.comments = append([]domain.Comment(nil), d.comments...)
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}

	// A caller that gave up while fn ran must not see its writes land.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data = work
	return nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	d *dataset
}

func (t *tx) Orders() store.OrderRepository     { return orderRepo{t.d} }
func (t *tx) Products() store.ProductRepository { return productRepo{t.d} }
func (t *tx) Carts() store.CartRepository       { return cartRepo{t.d} }
func (t *tx) Messages() store.MessageRepository { return messageRepo{t.d} }
func (t *tx) Comments() store.CommentRepository { return commentRepo{t.d} }
func (t *tx) Users() store.UserRepository       { return userRepo{t.d} }
func (t *tx) Reports() store.ReportRepository   { return reportRepo{t.d} }

type orderRepo struct{ d *dataset }

func (r orderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.d.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r orderRepo) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders := []domain.Order{}
	for _, o := range r.d.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, *o.Clone())
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r orderRepo) Insert(_ context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, ok := r.d.orders[order.ID]; ok {
		return domain.ErrConflict
	}
	for i := range order.Items {
		if _, ok := r.d.products[order.Items[i].ProductID]; !ok {
			return domain.ErrNotFound
		}
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
	}
	r.d.orders[order.ID] = *order.Clone()
	return nil
}

func (r orderRepo) Update(_ context.Context, order *domain.Order) error {
	existing, ok := r.d.orders[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	updated := *order.Clone()
	// Line items are fixed at creation.
	updated.Items = existing.Items
	r.d.orders[order.ID] = updated
	return nil
}

type productRepo struct{ d *dataset }

func (r productRepo) Get(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.d.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r productRepo) GetMany(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.d.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r productRepo) List(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(r.d.products))
	for _, p := range r.d.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r productRepo) Insert(_ context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, ok := r.d.products[product.ID]; ok {
		return domain.ErrConflict
	}
	r.d.products[product.ID] = *product
	return nil
}

func (r productRepo) Update(_ context.Context, product *domain.Product) error {
	existing, ok := r.d.products[product.ID]
	if !ok {
		return domain.ErrNotFound
	}
	updated := *product
	updated.Stock = existing.Stock
	updated.CreatedAt = existing.CreatedAt
	r.d.products[product.ID] = updated
	return nil
}

func (r productRepo) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	p, ok := r.d.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return p.Stock, domain.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	r.d.products[id] = p
	return p.Stock, nil
}

type cartRepo struct{ d *dataset }

func (r cartRepo) Get(_ context.Context, userID string) ([]domain.CartEntry, error) {
	entries := []domain.CartEntry{}
	for productID, qty := range r.d.carts[userID] {
		entries = append(entries, domain.CartEntry{UserID: userID, ProductID: productID, Quantity: qty})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ProductID < entries[j].ProductID })
	return entries, nil
}

func (r cartRepo) Upsert(_ context.Context, entry domain.CartEntry) error {
	if _, ok := r.d.products[entry.ProductID]; !ok {
		return domain.ErrNotFound
	}
	lines, ok := r.d.carts[entry.UserID]
	if !ok {
		lines = make(map[string]int)
		r.d.carts[entry.UserID] = lines
	}
	lines[entry.ProductID] = entry.Quantity
	return nil
}

func (r cartRepo) Delete(_ context.Context, userID, productID string) error {
	if _, ok := r.d.carts[userID][productID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.d.carts[userID], productID)
	return nil
}

func (r cartRepo) Clear(_ context.Context, userID string) error {
	delete(r.d.carts, userID)
	return nil
}

type messageRepo struct{ d *dataset }

func (r messageRepo) Insert(_ context.Context, msg *domain.OrderMessage) error {
	if _, ok := r.d.orders[msg.OrderID]; !ok {
		return domain.ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	r.d.messages = append(r.d.messages, *msg)
	return nil
}

func (r messageRepo) ListByOrder(_ context.Context, orderID string) ([]domain.OrderMessage, error) {
	msgs := []domain.OrderMessage{}
	for _, m := range r.d.messages {
		if m.OrderID == orderID {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	return msgs, nil
}

type commentRepo struct{ d *dataset }

func (r commentRepo) Insert(_ context.Context, c *domain.Comment) error {
	for _, existing := range r.d.comments {
		if existing.UserID == c.UserID && existing.ProductID == c.ProductID {
			return domain.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.d.comments = append(r.d.comments, *c)
	return nil
}

func (r commentRepo) HasPurchased(_ context.Context, userID, productID string) (bool, error) {
	for _, o := range r.d.orders {
		if o.UserID != userID || o.Status != domain.OrderStatusCompleted {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r commentRepo) ListByProduct(_ context.Context, productID string) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	for _, c := range r.d.comments {
		if c.ProductID == productID {
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.After(comments[j].CreatedAt) })
	return comments, nil
}

type userRepo struct{ d *dataset }

func (r userRepo) Insert(_ context.Context, u *domain.User) error {
	for _, existing := range r.d.users {
		if existing.Email == u.Email {
			return domain.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	r.d.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.d.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.d.users))
	for _, u := range r.d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}
