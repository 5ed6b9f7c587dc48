package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Store implements orders.Store on a pgx pool. Every InTx call is one
// database transaction; stock moves with conditional UPDATEs so concurrent
// service instances cannot oversell.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func (t *pgTx) Product(ctx context.Context, id string) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, title, price::text, quantity, created_at, updated_at
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, &orders.NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return orders.Product{}, err
	}
	if p.Price, err = parseMoney(price); err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

func (t *pgTx) InsertProduct(ctx context.Context, p orders.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (id, title, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)`,
		p.ID, p.Title, p.Price.String(), p.Quantity, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *pgTx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, title, price::text, quantity, created_at, updated_at
		FROM products ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var (
			p     orders.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Title, &price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecrementStock is a single conditional update; the row lock it takes
// serializes concurrent decrements of the same product.
func (t *pgTx) DecrementStock(ctx context.Context, productID string, amount int) (int, error) {
	var remaining int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, productID, amount).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// nothing updated: either the product is missing or stock is short
	var current int
	err = t.tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &orders.NotFoundError{Entity: "product", ID: productID}
	}
	if err != nil {
		return 0, err
	}
	return 0, &orders.InsufficientStockError{ProductID: productID, Requested: amount, Remaining: current}
}

func (t *pgTx) IncrementStock(ctx context.Context, productID string, amount int) (int, error) {
	var qty int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity`, productID, amount).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &orders.NotFoundError{Entity: "product", ID: productID}
	}
	return qty, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		o.ID, o.UserID, string(o.Status), o.Total.String(), o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *pgTx) Order(ctx context.Context, id string) (orders.Order, error) {
	var (
		o      orders.Order
		status string
		total  string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, status, total::text, created_at, updated_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &status, &total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, &orders.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	if o.Total, err = parseMoney(total); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (t *pgTx) SetOrderTotal(ctx context.Context, id string, total decimal.Decimal) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET total = $2::numeric, updated_at = now() WHERE id = $1`, id, total.String())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id string, status orders.Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

// DeleteOrder relies on ON DELETE CASCADE for any placements still attached.
func (t *pgTx) DeleteOrder(ctx context.Context, id string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &orders.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

func (t *pgTx) InsertPlacement(ctx context.Context, p orders.Placement) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO placements (id, order_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.OrderID, p.ProductID, p.Quantity, createdAt)
	return err
}

const placementColumns = `
	pl.id, pl.order_id, pl.product_id, pl.quantity, pl.created_at, p.title, p.price::text
	FROM placements pl JOIN products p ON p.id = pl.product_id`

func scanPlacement(row pgx.Row) (orders.Placement, error) {
	var (
		pl    orders.Placement
		price string
	)
	if err := row.Scan(&pl.ID, &pl.OrderID, &pl.ProductID, &pl.Quantity, &pl.CreatedAt, &pl.ProductTitle, &price); err != nil {
		return orders.Placement{}, err
	}
	var err error
	if pl.UnitPrice, err = parseMoney(price); err != nil {
		return orders.Placement{}, err
	}
	return pl, nil
}

func (t *pgTx) Placement(ctx context.Context, id string) (orders.Placement, error) {
	pl, err := scanPlacement(t.tx.QueryRow(ctx, `SELECT `+placementColumns+` WHERE pl.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Placement{}, &orders.NotFoundError{Entity: "placement", ID: id}
	}
	return pl, err
}

func (t *pgTx) Placements(ctx context.Context, orderID string) ([]orders.Placement, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+placementColumns+` WHERE pl.order_id = $1 ORDER BY pl.seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]orders.Placement, 0)
	for rows.Next() {
		pl, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (t *pgTx) DeletePlacement(ctx context.Context, id string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM placements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &orders.NotFoundError{Entity: "placement", ID: id}
	}
	return nil
}
