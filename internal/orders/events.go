package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type LinePayload struct {
	PlacementID string          `json:"placement_id"`
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Items    []LinePayload   `json:"items"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

type OrderCancelledPayload struct {
	OrderID     string        `json:"order_id"`
	UserID      string        `json:"user_id"`
	Items       []LinePayload `json:"items"` // restored quantities
	CancelledAt time.Time     `json:"cancelled_at"`
}

func linePayloads(ps []Placement) []LinePayload {
	out := make([]LinePayload, 0, len(ps))
	for _, p := range ps {
		out = append(out, LinePayload{
			PlacementID: p.ID,
			ProductID:   p.ProductID,
			Title:       p.ProductTitle,
			Qty:         p.Quantity,
			UnitPrice:   p.UnitPrice,
		})
	}
	return out
}

func NewOrderPlacedPayload(o Order) OrderPlacedPayload {
	return OrderPlacedPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    linePayloads(o.Placements),
		Total:    o.Total,
		PlacedAt: o.UpdatedAt,
	}
}

func NewOrderCancelledPayload(o Order) OrderCancelledPayload {
	return OrderCancelledPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       linePayloads(o.Placements),
		CancelledAt: o.UpdatedAt,
	}
}
