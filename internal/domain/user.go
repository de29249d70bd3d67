package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session identifies the caller of every service operation. It is issued by
// the auth service and never read from ambient state.
type Session struct {
	UserID string
	Role   Role
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) Owns(o *Order) bool {
	return s.UserID != "" && s.UserID == o.UserID
}

// ProductPurchase totals one product across a customer's completed orders.
type ProductPurchase struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Spent       decimal.Decimal `json:"spent"`
}

// CustomerSummary is what a customer has bought. Only completed orders count.
type CustomerSummary struct {
	User            User              `json:"user"`
	CompletedOrders int               `json:"completed_orders"`
	TotalSpent      decimal.Decimal   `json:"total_spent"`
	Products        []ProductPurchase `json:"products"`
}
