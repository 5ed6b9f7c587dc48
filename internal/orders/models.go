package orders

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest stock or line quantity the storage column holds.
const MaxQuantity = math.MaxInt32

// PriceScale is the number of decimal places a price may carry.
const PriceScale = 2

type Product struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Status     Status          `json:"status"` // lihat status.go
	Total      decimal.Decimal `json:"total"`
	Placements []Placement     `json:"placements"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Placement is one line item attached to an order. ProductTitle and UnitPrice
// are read from the product at load time and are not stored on the placement.
type Placement struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	ProductTitle string          `json:"product_title,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (p Placement) Subtotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// LineItem is a requested (product, quantity) pair before it becomes a placement.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
