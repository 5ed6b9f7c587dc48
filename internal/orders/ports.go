package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tx is the unit of work every product, order and placement read or write goes
// through. Implementations must make DecrementStock a single conditional update
// ("decrement if the result stays >= 0") enforced by the storage itself.
type Tx interface {
	Product(ctx context.Context, id string) (Product, error)
	InsertProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	DecrementStock(ctx context.Context, productID string, amount int) (int, error)
	IncrementStock(ctx context.Context, productID string, amount int) (int, error)

	InsertOrder(ctx context.Context, o Order) error
	Order(ctx context.Context, id string) (Order, error)
	SetOrderTotal(ctx context.Context, id string, total decimal.Decimal) error
	SetOrderStatus(ctx context.Context, id string, status Status) error
	DeleteOrder(ctx context.Context, id string) error

	InsertPlacement(ctx context.Context, p Placement) error
	Placement(ctx context.Context, id string) (Placement, error)
	// Placements returns the order's placements in insertion order, joined
	// with the current product title and price.
	Placements(ctx context.Context, orderID string) ([]Placement, error)
	DeletePlacement(ctx context.Context, id string) error
}

// Store runs fn inside one all-or-nothing transaction. Any error returned by fn,
// or a context cancelled before commit, rolls every write back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier receives finalized orders after commit. Implementations must not
// block; delivery failures are theirs to log.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order)
	OrderCancelled(ctx context.Context, o Order)
}

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(context.Context, Order)    {}
func (nopNotifier) OrderCancelled(context.Context, Order) {}
