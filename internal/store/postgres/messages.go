package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
)

type messageRepo struct {
	tx *sql.Tx
}

func (r *messageRepo) Insert(ctx context.Context, m *domain.OrderMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO order_messages (id, order_id, sender_id, text, is_admin, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.OrderID, nullString(m.SenderID), m.Text, m.IsAdmin, m.SentAt)
	return mapErr(err)
}

func (r *messageRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderMessage, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, order_id, sender_id, text, is_admin, sent_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY sent_at, id
	`, orderID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []domain.OrderMessage{}
	for rows.Next() {
		var (
			m      domain.OrderMessage
			sender sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &sender, &m.Text, &m.IsAdmin, &m.SentAt); err != nil {
			return nil, err
		}
		m.SenderID = sender.String
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}
