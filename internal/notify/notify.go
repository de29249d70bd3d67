// Package notify delivers committed row changes to interested parties: live
// subscribers in this process and the external brokers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Fanout publishes each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter selects events for a subscription. Empty fields match anything.
type Filter struct {
	Table   domain.Table
	OrderID string
}

func (f Filter) Match(e domain.Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.OrderID != "" && f.OrderID != e.OrderID {
		return false
	}
	return true
}

type Subscription struct {
	C      <-chan domain.Event
	ch     chan domain.Event
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

const defaultBuffer = 32

// Hub is the in-process subscription registry. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan domain.Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, hub: h}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				"table", event.Table, "order_id", event.OrderID)
		}
	}
	return nil
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
