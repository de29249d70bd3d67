package orders

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/objectstore"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
	"github.com/joao-fontenele/bookshelf-orders/internal/store/memory"
	"github.com/joao-fontenele/bookshelf-orders/internal/telemetry"
)

var (
	alice = domain.Session{UserID: "alice", Role: domain.RoleCustomer}
	bob   = domain.Session{UserID: "bob", Role: domain.RoleCustomer}
	admin = domain.Session{UserID: "admin", Role: domain.RoleAdmin}
)

var testAddress = domain.Address{
	Line1:    "Flat 5A",
	Street:   "12 Nathan Road",
	District: "Tsim Sha Tsui",
	Country:  "Hong Kong",
}

// proofRef names a proof object as an upload for orderID would.
func proofRef(orderID string) string {
	return objectstore.ProofKey(orderID, "proof.png", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return key, nil
}

func (m *memObjects) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *memObjects) URL(ref string) string { return "mem://" + ref }

func (m *memObjects) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok
}

func (m *memObjects) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) actions(table domain.Table) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Table == table {
			out = append(out, e.Action)
		}
	}
	return out
}

func (r *recorder) count(table domain.Table) int {
	return len(r.actions(table))
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	objects *memObjects
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	metrics, err := telemetry.NewOrderMetrics()
	require.NoError(t, err)

	st := memory.New()
	objects := newMemObjects()
	events := &recorder{}
	svc := NewService(st, objects, events, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	return &fixture{svc: svc, store: st, objects: objects, events: events}
}

func (f *fixture) addProduct(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.Products().Insert(context.Background(), &domain.Product{
			ID:    id,
			Name:  name,
			Price: decimal.RequireFromString(price),
			Stock: stock,
		})
	})
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id string) domain.Product {
	t.Helper()
	var p *domain.Product
	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		p, err = tx.Products().Get(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return *p
}

func (f *fixture) fillCart(t *testing.T, userID string, entries map[string]int) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		for pid, qty := range entries {
			if err := tx.Carts().Upsert(context.Background(), domain.CartEntry{UserID: userID, ProductID: pid, Quantity: qty}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) cart(t *testing.T, userID string) []domain.CartEntry {
	t.Helper()
	var entries []domain.CartEntry
	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		entries, err = tx.Carts().Get(context.Background(), userID)
		return err
	})
	require.NoError(t, err)
	return entries
}

func (f *fixture) createOrder(t *testing.T, sess domain.Session, items ...ItemInput) *domain.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), sess, CreateOrderInput{
		Items:         items,
		Address:       testAddress,
		PaymentMethod: domain.PaymentMethodPayMe,
	})
	require.NoError(t, err)
	return o
}

// paidOrder creates an order for alice and walks it to payment approved.
func (f *fixture) paidOrder(t *testing.T, items ...ItemInput) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := f.createOrder(t, alice, items...)
	_, err := f.svc.SubmitPaymentProof(ctx, alice, o.ID, proofRef(o.ID))
	require.NoError(t, err)
	o, err = f.svc.ReviewPayment(ctx, admin, o.ID, DecisionApprove)
	require.NoError(t, err)
	return o
}

func (f *fixture) shippedOrder(t *testing.T, items ...ItemInput) *domain.Order {
	t.Helper()
	o := f.paidOrder(t, items...)
	o, err := f.svc.ShipOrder(context.Background(), admin, o.ID)
	require.NoError(t, err)
	return o
}
