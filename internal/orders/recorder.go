package orders

import (
	"context"
	"fmt"
	"time"
)

// Recorder creates and removes placements. Each call adjusts the ledger and
// recomputes the owning order's total inside the caller's transaction.
type Recorder struct {
	tx        Tx
	ledger    Ledger
	aggregate Aggregate
	newID     func() string
	now       func() time.Time
}

func NewRecorder(tx Tx, newID func() string, now func() time.Time) Recorder {
	return Recorder{
		tx:        tx,
		ledger:    NewLedger(tx),
		aggregate: NewAggregate(tx),
		newID:     newID,
		now:       now,
	}
}

// Create attaches quantity units of productID to the pending order o.
func (r Recorder) Create(ctx context.Context, o Order, productID string, quantity int) (Placement, error) {
	if productID == "" {
		return Placement{}, invalid("product_id", "required")
	}
	if quantity <= 0 || quantity > MaxQuantity {
		return Placement{}, invalid("quantity", fmt.Sprintf("must be between 1 and %d", MaxQuantity))
	}
	if o.Status != StatusPending {
		return Placement{}, invalid("order", "placements can only be attached while the order is pending")
	}

	product, err := r.tx.Product(ctx, productID)
	if err != nil {
		return Placement{}, err
	}
	if _, err := r.ledger.Decrement(ctx, productID, quantity); err != nil {
		return Placement{}, err
	}

	p := Placement{
		ID:           r.newID(),
		OrderID:      o.ID,
		ProductID:    productID,
		Quantity:     quantity,
		ProductTitle: product.Title,
		UnitPrice:    product.Price,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.tx.InsertPlacement(ctx, p); err != nil {
		return Placement{}, err
	}
	if _, err := r.aggregate.RecomputeTotal(ctx, o.ID); err != nil {
		return Placement{}, err
	}
	return p, nil
}

// Remove deletes a placement and gives its exact quantity back to the product.
func (r Recorder) Remove(ctx context.Context, placementID string) (Placement, error) {
	p, err := r.tx.Placement(ctx, placementID)
	if err != nil {
		return Placement{}, err
	}
	if _, err := r.ledger.Increment(ctx, p.ProductID, p.Quantity); err != nil {
		return Placement{}, err
	}
	if err := r.tx.DeletePlacement(ctx, p.ID); err != nil {
		return Placement{}, err
	}
	if _, err := r.aggregate.RecomputeTotal(ctx, p.OrderID); err != nil {
		return Placement{}, err
	}
	return p, nil
}
