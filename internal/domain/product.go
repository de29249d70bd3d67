package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  string          `json:"category_id,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CartEntry struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductSales struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AverageRating *float64        `json:"average_rating"`
	RatingCount   int             `json:"rating_count"`
}

// SalesPeriod bounds a sales report. Zero Year means all time; Month is only
// honoured together with Year.
type SalesPeriod struct {
	Year  int `json:"year,omitempty" validate:"omitempty,min=1970,max=9999"`
	Month int `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
}

func (p SalesPeriod) Bounds() (from, to time.Time, ok bool) {
	if p.Year == 0 {
		return time.Time{}, time.Time{}, false
	}
	if p.Month == 0 {
		from = time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), true
	}
	from = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), true
}
