// Package memstore implements orders.Store in memory.
//
// Transactions are serialized with a single mutex and run against a copy of
// the state; the copy replaces the live state only on commit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type placementRow struct {
	p   orders.Placement
	seq int64
}

type state struct {
	products   map[string]orders.Product
	orders     map[string]orders.Order
	placements map[string]placementRow
	seq        int64
}

func (s state) clone() state {
	out := state{
		products:   make(map[string]orders.Product, len(s.products)),
		orders:     make(map[string]orders.Order, len(s.orders)),
		placements: make(map[string]placementRow, len(s.placements)),
		seq:        s.seq,
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.placements {
		out.placements[k] = v
	}
	return out
}

// Store provides an in-memory implementation of orders.Store.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st: state{
			products:   make(map[string]orders.Product),
			orders:     make(map[string]orders.Order),
			placements: make(map[string]placementRow),
		},
		now: time.Now,
	}
}

// InTx runs fn against a private copy of the state and publishes it on success.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{st: s.st.clone(), now: s.now}
	if err := fn(ctx, t); err != nil {
		return err
	}
	// a caller that gave up mid-transaction gets nothing committed
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = t.st
	return nil
}

type tx struct {
	st  state
	now func() time.Time
}

func (t *tx) Product(_ context.Context, id string) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, &orders.NotFoundError{Entity: "product", ID: id}
	}
	return p, nil
}

func (t *tx) InsertProduct(_ context.Context, p orders.Product) error {
	if _, ok := t.st.products[p.ID]; ok {
		return &orders.ValidationError{Field: "id", Reason: "product " + p.ID + " already exists"}
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) ListProducts(_ context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, amount int) (int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return 0, &orders.NotFoundError{Entity: "product", ID: productID}
	}
	if p.Quantity < amount {
		return 0, &orders.InsufficientStockError{ProductID: productID, Requested: amount, Remaining: p.Quantity}
	}
	p.Quantity -= amount
	p.UpdatedAt = t.now().UTC()
	t.st.products[productID] = p
	return p.Quantity, nil
}

func (t *tx) IncrementStock(_ context.Context, productID string, amount int) (int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return 0, &orders.NotFoundError{Entity: "product", ID: productID}
	}
	p.Quantity += amount
	p.UpdatedAt = t.now().UTC()
	t.st.products[productID] = p
	return p.Quantity, nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	o.Placements = nil
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) Order(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, &orders.NotFoundError{Entity: "order", ID: id}
	}
	return o, nil
}

func (t *tx) SetOrderTotal(_ context.Context, id string, total decimal.Decimal) error {
	o, ok := t.st.orders[id]
	if !ok {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	o.Total = total
	o.UpdatedAt = t.now().UTC()
	t.st.orders[id] = o
	return nil
}

func (t *tx) SetOrderStatus(_ context.Context, id string, status orders.Status) error {
	o, ok := t.st.orders[id]
	if !ok {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	o.Status = status
	o.UpdatedAt = t.now().UTC()
	t.st.orders[id] = o
	return nil
}

// DeleteOrder removes the order and cascades to its placements.
func (t *tx) DeleteOrder(_ context.Context, id string) error {
	if _, ok := t.st.orders[id]; !ok {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	delete(t.st.orders, id)
	for pid, row := range t.st.placements {
		if row.p.OrderID == id {
			delete(t.st.placements, pid)
		}
	}
	return nil
}

func (t *tx) InsertPlacement(_ context.Context, p orders.Placement) error {
	if _, ok := t.st.orders[p.OrderID]; !ok {
		return &orders.NotFoundError{Entity: "order", ID: p.OrderID}
	}
	if _, ok := t.st.products[p.ProductID]; !ok {
		return &orders.NotFoundError{Entity: "product", ID: p.ProductID}
	}
	t.st.seq++
	p.ProductTitle, p.UnitPrice = "", decimal.Zero
	t.st.placements[p.ID] = placementRow{p: p, seq: t.st.seq}
	return nil
}

func (t *tx) Placement(_ context.Context, id string) (orders.Placement, error) {
	row, ok := t.st.placements[id]
	if !ok {
		return orders.Placement{}, &orders.NotFoundError{Entity: "placement", ID: id}
	}
	return t.join(row.p), nil
}

func (t *tx) Placements(_ context.Context, orderID string) ([]orders.Placement, error) {
	rows := make([]placementRow, 0)
	for _, row := range t.st.placements {
		if row.p.OrderID == orderID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]orders.Placement, 0, len(rows))
	for _, row := range rows {
		out = append(out, t.join(row.p))
	}
	return out, nil
}

func (t *tx) DeletePlacement(_ context.Context, id string) error {
	if _, ok := t.st.placements[id]; !ok {
		return &orders.NotFoundError{Entity: "placement", ID: id}
	}
	delete(t.st.placements, id)
	return nil
}

func (t *tx) join(p orders.Placement) orders.Placement {
	if prod, ok := t.st.products[p.ProductID]; ok {
		p.ProductTitle = prod.Title
		p.UnitPrice = prod.Price
	}
	return p
}
