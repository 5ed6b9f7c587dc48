package orders

import "context"

// Ledger adjusts product stock. It holds no quantities of its own; every call
// goes to the transaction so concurrent requests serialize in storage.
type Ledger struct{ tx Tx }

func NewLedger(tx Tx) Ledger { return Ledger{tx: tx} }

// Decrement removes amount from the product's stock and returns what is left.
// It fails with *InsufficientStockError when the result would be negative.
func (l Ledger) Decrement(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, invalid("quantity", "must be positive")
	}
	return l.tx.DecrementStock(ctx, productID, amount)
}

// Increment gives amount back to the product's stock.
func (l Ledger) Increment(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, invalid("quantity", "must be positive")
	}
	return l.tx.IncrementStock(ctx, productID, amount)
}

func (l Ledger) Quantity(ctx context.Context, productID string) (int, error) {
	p, err := l.tx.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Quantity, nil
}
