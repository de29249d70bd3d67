package domain

import "time"

// OrderMessage is an append-only entry in an order's chat log. System
// notifications are stored here too with IsAdmin set and an empty SenderID
// when no admin triggered them.
type OrderMessage struct {
	ID       string    `json:"id"`
	OrderID  string    `json:"order_id"`
	SenderID string    `json:"sender_id,omitempty"`
	Text     string    `json:"text"`
	IsAdmin  bool      `json:"is_admin"`
	SentAt   time.Time `json:"sent_at"`
}
