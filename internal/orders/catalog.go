package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Catalog is the seller-facing side of products. Stock is only set here at
// creation; afterwards it moves through placements alone.
type Catalog struct {
	store Store
	newID func() string
	now   func() time.Time
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, newID: uuid.NewString, now: time.Now}
}

func (c *Catalog) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return Product{}, invalid("title", "required")
	}
	if !p.Price.IsPositive() {
		return Product{}, invalid("price", "must be positive")
	}
	if !p.Price.Equal(p.Price.Round(PriceScale)) {
		return Product{}, invalid("price", fmt.Sprintf("at most %d decimal places", PriceScale))
	}
	if p.Quantity < 0 {
		return Product{}, invalid("quantity", "must not be negative")
	}
	if p.Quantity > MaxQuantity {
		return Product{}, invalid("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	now := c.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	err := c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (Product, error) {
	var out Product
	err := c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Product(ctx, id)
		out = p
		return err
	})
	return out, err
}

func (c *Catalog) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ps, err := tx.ListProducts(ctx)
		out = ps
		return err
	})
	return out, err
}
