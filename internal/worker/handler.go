// Package worker turns committed order changes into customer e-mails.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/orders"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

// Directory resolves the address notifications for a user are sent to.
type Directory interface {
	Email(ctx context.Context, userID string) (string, error)
}

type StoreDirectory struct {
	store store.Store
}

func NewStoreDirectory(st store.Store) *StoreDirectory {
	return &StoreDirectory{store: st}
}

func (d *StoreDirectory) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := d.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		email = u.Email
		return nil
	})
	return email, err
}

type NotificationHandler struct {
	emailServiceURL string
	directory       Directory
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, directory Directory, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		directory:       directory,
		httpClient:      client,
		logger:          logger,
	}
}

type notice struct {
	subject string
	body    string
}

func noticeFor(event domain.Event) (notice, bool) {
	if event.Table != domain.TableOrders || event.Op != domain.OpUpdate || event.Order == nil {
		return notice{}, false
	}
	o := event.Order
	switch event.Action {
	case orders.ActionApprovePayment:
		return notice{
			subject: "Payment confirmed: " + o.ID,
			body:    fmt.Sprintf("We have confirmed your payment of HK$%s for order %s. We will let you know when it ships.", o.Total.StringFixed(2), o.ID),
		}, true
	case orders.ActionRejectPayment:
		return notice{
			subject: "Payment proof rejected: " + o.ID,
			body:    fmt.Sprintf("We could not verify the payment proof for order %s. Please upload a new one from your order page.", o.ID),
		}, true
	case orders.ActionShip:
		return notice{
			subject: "Order shipped: " + o.ID,
			body:    fmt.Sprintf("Your order %s is on its way to %s.", o.ID, o.Address.Format()),
		}, true
	case orders.ActionMarkDelivered:
		return notice{
			subject: "Order delivered: " + o.ID,
			body:    fmt.Sprintf("Your order %s has been delivered. Please confirm receipt once you have it.", o.ID),
		}, true
	case orders.ActionConfirmReceipt:
		return notice{
			subject: "Thank you for your order: " + o.ID,
			body:    fmt.Sprintf("Order %s is complete. You can now rate the books you bought.", o.ID),
		}, true
	}
	return notice{}, false
}

// Handle e-mails the order's customer for the lifecycle steps they care
// about and ignores everything else. Returning an error leaves the event
// uncommitted so it is retried.
func (h *NotificationHandler) Handle(ctx context.Context, event domain.Event) error {
	n, ok := noticeFor(event)
	if !ok {
		h.logger.Debug("event skipped", "table", event.Table, "action", event.Action, "order_id", event.OrderID)
		return nil
	}

	to, err := h.directory.Email(ctx, event.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn("customer not found, notification dropped", "user_id", event.UserID, "order_id", event.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up customer %s: %w", event.UserID, err)
	}

	h.logger.Info("sending notification", "order_id", event.OrderID, "action", event.Action)
	if err := h.sendEmail(ctx, map[string]string{"to": to, "subject": n.subject, "body": n.body}); err != nil {
		h.logger.Error("failed to send notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send %s notification: %w", event.Action, err)
	}
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
