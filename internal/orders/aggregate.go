package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Aggregate keeps an order's derived fields in step with its placements.
type Aggregate struct{ tx Tx }

func NewAggregate(tx Tx) Aggregate { return Aggregate{tx: tx} }

// RecomputeTotal sums quantity x current price over the order's live
// placements and persists the result. Totals are never derived at read time.
func (a Aggregate) RecomputeTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	ps, err := a.tx.Placements(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := Total(ps)
	if err := a.tx.SetOrderTotal(ctx, orderID, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Transition moves the order to the given status if the state machine allows it.
func (a Aggregate) Transition(ctx context.Context, orderID string, to Status) error {
	o, err := a.tx.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return invalid("status", fmt.Sprintf("cannot move order %s from %s to %s", orderID, o.Status, to))
	}
	return a.tx.SetOrderStatus(ctx, orderID, to)
}

// Load returns the order with its placements.
func (a Aggregate) Load(ctx context.Context, orderID string) (Order, error) {
	o, err := a.tx.Order(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	ps, err := a.tx.Placements(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	o.Placements = ps
	return o, nil
}

func Total(ps []Placement) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(p.Subtotal())
	}
	return total
}
