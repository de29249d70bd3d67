package orders

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

const maxMessageLength = 2000

// SendMessage appends a chat message to the order's log. The admin flag
// follows the sender's role.
func (s *Service) SendMessage(ctx context.Context, sess domain.Session, orderID, text string) (*domain.OrderMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Invalid("text", "is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, domain.Invalid("text", "must be at most 2000 characters")
	}

	var (
		msg   *domain.OrderMessage
		owner string
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := canView(sess, o); err != nil {
			return err
		}

		owner = o.UserID
		msg = &domain.OrderMessage{
			OrderID:  o.ID,
			SenderID: sess.UserID,
			Text:     text,
			IsAdmin:  sess.IsAdmin(),
			SentAt:   s.now(),
		}
		return tx.Messages().Insert(ctx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.MessageEvent(owner, msg))
	s.logger.Info("order message sent", "order_id", orderID, "user_id", sess.UserID)
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, sess domain.Session, orderID string) ([]domain.OrderMessage, error) {
	var msgs []domain.OrderMessage
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := canView(sess, o); err != nil {
			return err
		}
		msgs, err = tx.Messages().ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
