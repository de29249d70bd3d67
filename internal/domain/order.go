package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is empty until a payment proof is submitted. It encodes as
// JSON null in that state.
type PaymentStatus string

const (
	PaymentStatusNone          PaymentStatus = ""
	PaymentStatusPendingReview PaymentStatus = "pending_review"
	PaymentStatusPaid          PaymentStatus = "paid"
)

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	if s == PaymentStatusNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = PaymentStatusNone
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = PaymentStatus(v)
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodPayMe          PaymentMethod = "payme"
	PaymentMethodWeChat         PaymentMethod = "wechat"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodCashOnDelivery, PaymentMethodPayMe, PaymentMethodWeChat:
		return true
	}
	return false
}

// LocationDelivered is the delivery location sentinel set by MarkDelivered.
const LocationDelivered = "delivered"

const DefaultCountry = "Hong Kong"

type Address struct {
	Line1    string `json:"line1" validate:"required,max=200"`
	Line2    string `json:"line2,omitempty" validate:"max=200"`
	Street   string `json:"street" validate:"required,max=200"`
	District string `json:"district" validate:"required,max=100"`
	Country  string `json:"country" validate:"required,max=100"`
}

// Format renders the address the way couriers report it back when marking an
// order delivered.
func (a Address) Format() string {
	parts := []string{a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	parts = append(parts, a.Street, a.District, a.Country)
	return strings.Join(parts, ", ")
}

type OrderItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	Total             decimal.Decimal `json:"total"`
	Status            OrderStatus     `json:"status"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentProofImage string          `json:"payment_proof_image,omitempty"`
	Address           Address         `json:"delivery_address"`
	CurrentLocation   string          `json:"delivery_status_current_location,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MarshalJSON writes the total with two decimal places whatever scale the
// value carries.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		Total string `json:"total"`
	}{plain(o), o.Total.StringFixed(2)})
}

func (o *Order) Delivered() bool {
	return o.CurrentLocation == LocationDelivered
}

// Clone returns a deep copy so callers can mutate a candidate state without
// touching the receiver.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
}
