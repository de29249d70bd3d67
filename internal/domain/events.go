package domain

import "time"

type Table string

const (
	TableOrders        Table = "orders"
	TableOrderMessages Table = "order_messages"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
)

// Event is a committed row change. Exactly one of Order or Message is set,
// matching Table. Action names the lifecycle operation that produced it.
type Event struct {
	Table     Table         `json:"table"`
	Op        ChangeOp      `json:"op"`
	OrderID   string        `json:"order_id"`
	UserID    string        `json:"user_id"`
	Action    string        `json:"action,omitempty"`
	Order     *Order        `json:"order,omitempty"`
	Message   *OrderMessage `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func OrderEvent(op ChangeOp, action string, o *Order) Event {
	return Event{
		Table:     TableOrders,
		Op:        op,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Action:    action,
		Order:     o.Clone(),
		Timestamp: o.UpdatedAt,
	}
}

func MessageEvent(userID string, m *OrderMessage) Event {
	msg := *m
	return Event{
		Table:     TableOrderMessages,
		Op:        OpInsert,
		OrderID:   m.OrderID,
		UserID:    userID,
		Message:   &msg,
		Timestamp: m.SentAt,
	}
}
