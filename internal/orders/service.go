// Package orders is the order lifecycle manager. Every operation loads the
// order, checks the caller and the transition, and writes the new state
// together with its side effects (stock, cart, system messages) in one store
// transaction. Change events are published only after commit.
package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/notify"
	"github.com/joao-fontenele/bookshelf-orders/internal/objectstore"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
	"github.com/joao-fontenele/bookshelf-orders/internal/telemetry"
)

var tracer = otel.Tracer("orders")

const (
	ActionCreate         = "create"
	ActionSubmitProof    = "submit_payment_proof"
	ActionApprovePayment = "approve_payment"
	ActionRejectPayment  = "reject_payment"
	ActionShip           = "ship"
	ActionUpdateLocation = "update_location"
	ActionMarkDelivered  = "mark_delivered"
	ActionConfirmReceipt = "confirm_receipt"
	ActionCancel         = "cancel"
)

type Service struct {
	store   store.Store
	objects objectstore.Store
	events  notify.Publisher
	metrics *telemetry.OrderMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(st store.Store, objects objectstore.Store, events notify.Publisher, metrics *telemetry.OrderMetrics, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		objects: objects,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type ItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// CreateOrderInput carries the checkout request. When Items is empty the
// caller's stored cart is used.
type CreateOrderInput struct {
	Items         []ItemInput          `json:"items" validate:"omitempty,dive"`
	Address       domain.Address       `json:"delivery_address"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required,oneof=card paypal cash_on_delivery payme wechat"`
}

func (s *Service) CreateOrder(ctx context.Context, sess domain.Session, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.create", trace.WithAttributes(attribute.String("user.id", sess.UserID)))
	defer span.End()

	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	in.Address = trimAddress(in.Address)
	if in.Address.Country == "" {
		in.Address.Country = domain.DefaultCountry
	}
	if err := domain.Validate(in); err != nil {
		return nil, s.fail(ctx, span, ActionCreate, err)
	}

	var order *domain.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		lines := in.Items
		if len(lines) == 0 {
			cart, err := tx.Carts().Get(ctx, sess.UserID)
			if err != nil {
				return err
			}
			for _, e := range cart {
				lines = append(lines, ItemInput{ProductID: e.ProductID, Quantity: e.Quantity})
			}
		}
		lines = mergeLines(lines)
		if len(lines) == 0 {
			return domain.Invalid("items", "cart is empty")
		}

		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		products, err := tx.Products().GetMany(ctx, ids)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid(unknownProductField(ids), "does not exist")
		}
		if err != nil {
			return err
		}

		now := s.now()
		order = &domain.Order{
			UserID:        sess.UserID,
			Items:         make([]domain.OrderItem, 0, len(lines)),
			Total:         decimal.Zero,
			Status:        domain.OrderStatusPending,
			PaymentMethod: in.PaymentMethod,
			Address:       in.Address,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		for i, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return domain.Invalid(fmt.Sprintf("items[%d].product_id", i), "does not exist")
			}
			item := domain.OrderItem{ProductID: p.ID, Quantity: l.Quantity, UnitPrice: p.Price}
			order.Items = append(order.Items, item)
			order.Total = order.Total.Add(item.Subtotal())
		}
		order.Total = order.Total.Round(2)

		if err := tx.Orders().Insert(ctx, order); err != nil {
			return err
		}

		return tx.Carts().Clear(ctx, sess.UserID)
	})
	if err != nil {
		return nil, s.fail(ctx, span, ActionCreate, err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.metrics.Transition(ctx, ActionCreate)
	s.publish(ctx, domain.OrderEvent(domain.OpInsert, ActionCreate, order))
	s.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.Total.StringFixed(2))

	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, sess domain.Session, id string) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := canView(sess, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the caller's orders, or every order for admins,
// newest first.
// ListOrders returns orders newest first. Customers only ever see their own;
// admins may narrow the listing to one customer with filter.UserID.
func (s *Service) ListOrders(ctx context.Context, sess domain.Session, filter domain.OrderFilter) ([]domain.Order, error) {
	if sess.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("status", "must be one of pending shipped completed cancelled")
	}

	filter.UserID = strings.TrimSpace(filter.UserID)
	if !sess.IsAdmin() {
		if filter.UserID != "" && filter.UserID != sess.UserID {
			return nil, fmt.Errorf("%w: only admins can list other customers' orders", domain.ErrForbidden)
		}
		filter.UserID = sess.UserID
	}

	var orders []domain.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		orders, err = tx.Orders().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SubmitPaymentProof puts a previously uploaded proof under review. The
// reference must name an object stored for this order.
func (s *Service) SubmitPaymentProof(ctx context.Context, sess domain.Session, id, imageRef string) (*domain.Order, error) {
	imageRef = strings.TrimSpace(imageRef)
	if imageRef != "" && !objectstore.IsProofFor(id, imageRef) {
		return nil, domain.Invalid("image_ref", "must reference a proof uploaded for this order")
	}

	return s.transition(ctx, ActionSubmitProof, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
		if err := requireOwner(sess, o); err != nil {
			return err
		}
		c.changed = true
		return o.SubmitPaymentProof(imageRef, s.now())
	})
}

// UploadPaymentProof stores the image and submits it as the order's payment
// proof. The stored object is removed again if the submission is refused.
func (s *Service) UploadPaymentProof(ctx context.Context, sess domain.Session, id, filename string, body io.Reader, size int64, contentType string) (*domain.Order, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, domain.Invalid("image", "must be an image")
	}

	// Fail fast on missing or foreign orders before touching storage.
	if _, err := s.GetOrder(ctx, sess, id); err != nil {
		return nil, err
	}

	ref, err := s.objects.Put(ctx, objectstore.ProofKey(id, filename, s.now()), body, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store payment proof: %w", err)
	}

	order, err := s.SubmitPaymentProof(ctx, sess, id, ref)
	if err != nil {
		s.deleteObject(ctx, id, ref)
		return nil, err
	}
	return order, nil
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ReviewPayment approves or rejects the proof under review. Approving an
// already paid order is a no-op. Rejecting deletes the stored proof after
// the order is updated.
func (s *Service) ReviewPayment(ctx context.Context, sess domain.Session, id string, decision Decision) (*domain.Order, error) {
	switch decision {
	case DecisionApprove:
		return s.transition(ctx, ActionApprovePayment, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
			if err := requireAdmin(sess); err != nil {
				return err
			}
			changed, err := o.ApprovePayment(s.now())
			if err != nil {
				return err
			}
			c.changed = changed
			if changed {
				c.say(sess.UserID, "Your payment for order %s has been confirmed.", o.ID)
			}
			return nil
		})

	case DecisionReject:
		var proof string
		order, err := s.transition(ctx, ActionRejectPayment, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
			if err := requireAdmin(sess); err != nil {
				return err
			}
			ref, err := o.RejectPayment(s.now())
			if err != nil {
				return err
			}
			proof = ref
			c.changed = true
			c.say(sess.UserID, "Your payment proof for order %s was rejected. Please upload a new one.", o.ID)
			return nil
		})
		if err != nil {
			return nil, err
		}
		switch {
		case objectstore.IsProofFor(id, proof):
			s.deleteObject(ctx, id, proof)
		case proof != "":
			s.logger.Warn("kept payment proof not stored for this order", "order_id", id, "ref", proof)
		}
		return order, nil
	}

	return nil, domain.Invalid("decision", "must be one of approve reject")
}

// ShipOrder decrements stock for every line item and marks the order shipped.
// If any product is short nothing is changed and every shortage is reported.
func (s *Service) ShipOrder(ctx context.Context, sess domain.Session, id string) (*domain.Order, error) {
	return s.transition(ctx, ActionShip, id, func(ctx context.Context, tx store.Tx, o *domain.Order, c *change) error {
		if err := requireAdmin(sess); err != nil {
			return err
		}
		if err := o.Ship(s.now()); err != nil {
			return err
		}

		required := make(map[string]int, len(o.Items))
		var ids []string
		for _, item := range o.Items {
			if _, ok := required[item.ProductID]; !ok {
				ids = append(ids, item.ProductID)
			}
			required[item.ProductID] += item.Quantity
		}
		sort.Strings(ids)

		products, err := tx.Products().GetMany(ctx, ids)
		if err != nil {
			return err
		}

		var shortages []domain.Shortage
		for _, pid := range ids {
			p, ok := products[pid]
			if !ok {
				shortages = append(shortages, domain.Shortage{ProductID: pid, Name: pid, Required: required[pid]})
				continue
			}
			if p.Stock < required[pid] {
				shortages = append(shortages, domain.Shortage{
					ProductID: pid,
					Name:      p.Name,
					Required:  required[pid],
					Available: p.Stock,
				})
			}
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}

		for _, pid := range ids {
			if _, err := tx.Products().AdjustStock(ctx, pid, -required[pid]); err != nil {
				return fmt.Errorf("decrement stock for %s: %w", pid, err)
			}
		}

		c.changed = true
		c.say(sess.UserID, "Order %s has been shipped.", o.ID)
		return nil
	})
}

func (s *Service) UpdateDeliveryLocation(ctx context.Context, sess domain.Session, id, location string) (*domain.Order, error) {
	return s.transition(ctx, ActionUpdateLocation, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
		if err := requireAdmin(sess); err != nil {
			return err
		}
		if err := o.UpdateLocation(location, s.now()); err != nil {
			return err
		}
		c.changed = true
		c.say(sess.UserID, "Order %s is now at: %s", o.ID, o.CurrentLocation)
		return nil
	})
}

// MarkDelivered completes delivery when location matches the order's
// formatted address. Repeating it on a delivered order is a no-op.
func (s *Service) MarkDelivered(ctx context.Context, sess domain.Session, id, location string) (*domain.Order, error) {
	return s.transition(ctx, ActionMarkDelivered, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
		if err := requireAdmin(sess); err != nil {
			return err
		}
		changed, err := o.MarkDelivered(strings.TrimSpace(location), s.now())
		if err != nil {
			return err
		}
		c.changed = changed
		if changed {
			c.say(sess.UserID, "Order %s has been delivered. Please confirm receipt.", o.ID)
		}
		return nil
	})
}

func (s *Service) ConfirmReceipt(ctx context.Context, sess domain.Session, id string) (*domain.Order, error) {
	return s.transition(ctx, ActionConfirmReceipt, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
		if err := requireOwner(sess, o); err != nil {
			return err
		}
		if err := o.ConfirmReceipt(s.now()); err != nil {
			return err
		}
		c.changed = true
		c.say("", "Thank you for your purchase! Order %s is complete and you can now rate the books you bought.", o.ID)
		return nil
	})
}

// CancelOrder soft-cancels a pending order that has no payment under review
// or approved. The order row and its items are kept.
func (s *Service) CancelOrder(ctx context.Context, sess domain.Session, id string) (*domain.Order, error) {
	return s.transition(ctx, ActionCancel, id, func(_ context.Context, _ store.Tx, o *domain.Order, c *change) error {
		if err := requireOwner(sess, o); err != nil {
			return err
		}
		c.changed = true
		return o.Cancel(s.now())
	})
}

type change struct {
	changed  bool
	messages []domain.OrderMessage
}

// say queues a system message. An empty sender marks a message no admin
// triggered.
func (c *change) say(senderID, format string, args ...any) {
	c.messages = append(c.messages, domain.OrderMessage{
		SenderID: senderID,
		Text:     fmt.Sprintf(format, args...),
		IsAdmin:  true,
	})
}

type applyFunc func(ctx context.Context, tx store.Tx, o *domain.Order, c *change) error

func (s *Service) transition(ctx context.Context, action, id string, apply applyFunc) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders."+action, trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var (
		order *domain.Order
		c     change
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		c = change{}
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}

		if err := apply(ctx, tx, o, &c); err != nil {
			return err
		}
		order = o
		if !c.changed {
			return nil
		}

		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		for i := range c.messages {
			c.messages[i].OrderID = o.ID
			c.messages[i].SentAt = o.UpdatedAt
			if err := tx.Messages().Insert(ctx, &c.messages[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, action, err)
	}

	if !c.changed {
		s.logger.Info("order unchanged", "order_id", id, "action", action)
		return order, nil
	}

	s.metrics.Transition(ctx, action)
	s.publish(ctx, domain.OrderEvent(domain.OpUpdate, action, order))
	for i := range c.messages {
		s.publish(ctx, domain.MessageEvent(order.UserID, &c.messages[i]))
	}

	s.logger.Info("order updated", "order_id", id, "action", action,
		"status", order.Status, "payment_status", string(order.PaymentStatus))
	return order, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, action string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		s.metrics.Shortages(ctx, len(stockErr.Shortages))
		s.metrics.Rejected(ctx, action)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrValidation):
		s.metrics.Rejected(ctx, action)
	}
	return err
}

func (s *Service) publish(ctx context.Context, event domain.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.metrics.PublishError(ctx, string(event.Table))
		s.logger.Error("failed to publish change event", "error", err,
			"table", event.Table, "order_id", event.OrderID)
	}
}

func (s *Service) deleteObject(ctx context.Context, orderID, ref string) {
	if err := s.objects.Delete(ctx, ref); err != nil {
		s.logger.Error("failed to delete payment proof", "error", err, "order_id", orderID, "ref", ref)
	}
}

func canView(sess domain.Session, o *domain.Order) error {
	if sess.UserID == "" {
		return domain.ErrUnauthorized
	}
	if sess.IsAdmin() || sess.Owns(o) {
		return nil
	}
	// Other customers' orders are reported as missing.
	return domain.ErrNotFound
}

func requireOwner(sess domain.Session, o *domain.Order) error {
	if err := canView(sess, o); err != nil {
		return err
	}
	if !sess.Owns(o) {
		return fmt.Errorf("%w: only the customer who placed the order can do this", domain.ErrForbidden)
	}
	return nil
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

// mergeLines sums quantities of repeated products, keeping first-seen order.
func mergeLines(lines []ItemInput) []ItemInput {
	out := make([]ItemInput, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// unknownProductField names the first id the store could not parse as a
// product key, falling back to the first line.
func unknownProductField(ids []string) string {
	for i, id := range ids {
		if uuid.Validate(id) != nil {
			return fmt.Sprintf("items[%d].product_id", i)
		}
	}
	return "items[0].product_id"
}

func trimAddress(a domain.Address) domain.Address {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.Street = strings.TrimSpace(a.Street)
	a.District = strings.TrimSpace(a.District)
	a.Country = strings.TrimSpace(a.Country)
	return a
}
