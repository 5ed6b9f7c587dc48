package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultAttempts = 3

// Service is the only entry point callers use to place, inspect and cancel
// orders.
type Service struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger
	tracer   trace.Tracer
	attempts uint
	newID    func() string
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithAttempts bounds how many times a transaction hitting a conflict is run.
func WithAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = uint(n)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: nopNotifier{},
		log:      zerolog.Nop(),
		tracer:   otel.Tracer("orders"),
		attempts: defaultAttempts,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateLineItems checks a placement request before anything is written.
func ValidateLineItems(userID string, items []LineItem) error {
	if userID == "" {
		return invalid("user_id", "required")
	}
	if len(items) == 0 {
		return invalid("items", "at least one line item is required")
	}
	for i, it := range items {
		if it.ProductID == "" {
			return invalid(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if it.Quantity <= 0 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if it.Quantity > MaxQuantity {
			return invalid(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("must not exceed %d", MaxQuantity))
		}
	}
	return nil
}

// PlaceOrder creates an order for userID with one placement per line item, in
// input order. Either the whole order commits with its stock decrements and
// total, or nothing is written.
func (s *Service) PlaceOrder(ctx context.Context, userID string, items []LineItem) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("line_items", len(items)),
	))
	defer span.End()

	if err := ValidateLineItems(userID, items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}

	o, err := s.retry(ctx, "place", func(ctx context.Context) (Order, error) {
		return s.place(ctx, userID, items)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn().Err(err).Str("user_id", userID).Int("line_items", len(items)).Msg("place order failed")
		return Order{}, err
	}
	span.SetAttributes(attribute.String("order_id", o.ID))

	s.notifier.OrderPlaced(ctx, o)
	s.log.Info().Str("order_id", o.ID).Str("user_id", userID).Str("total", o.Total.StringFixed(2)).Msg("order placed")
	return o, nil
}

func (s *Service) place(ctx context.Context, userID string, items []LineItem) (Order, error) {
	var out Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()
		o := Order{
			ID:        s.newID(),
			UserID:    userID,
			Status:    StatusPending,
			Total:     decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		rec := NewRecorder(tx, s.newID, s.now)
		for i, it := range items {
			if _, err := rec.Create(ctx, o, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("line %d (product %s): %w", i, it.ProductID, err)
			}
		}

		agg := NewAggregate(tx)
		if err := agg.Transition(ctx, o.ID, StatusPlaced); err != nil {
			return err
		}
		loaded, err := agg.Load(ctx, o.ID)
		if err != nil {
			return err
		}
		out = loaded
		return nil
	})
	return out, err
}

// CancelOrder reverses every placement of the order, restoring stock exactly,
// then deletes it. The returned snapshot carries status CANCELLED and the
// placements that were removed.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CancelOrder", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	if orderID == "" {
		return Order{}, invalid("order_id", "required")
	}

	o, err := s.retry(ctx, "cancel", func(ctx context.Context) (Order, error) {
		return s.cancel(ctx, orderID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("cancel order failed")
		return Order{}, err
	}

	s.notifier.OrderCancelled(ctx, o)
	s.log.Info().Str("order_id", o.ID).Int("placements", len(o.Placements)).Msg("order cancelled")
	return o, nil
}

func (s *Service) cancel(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := NewAggregate(tx).Load(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return invalid("status", fmt.Sprintf("order %s is %s and cannot be cancelled", orderID, o.Status))
		}

		rec := NewRecorder(tx, s.newID, s.now)
		for _, p := range o.Placements {
			if _, err := rec.Remove(ctx, p.ID); err != nil {
				return fmt.Errorf("remove placement %s: %w", p.ID, err)
			}
		}
		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return err
		}

		o.Status = StatusCancelled
		o.Total = decimal.Zero
		o.UpdatedAt = s.now().UTC()
		out = o
		return nil
	})
	return out, err
}

// GetOrder returns the order with its placements.
func (s *Service) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var out Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := NewAggregate(tx).Load(ctx, orderID)
		out = o
		return err
	})
	return out, err
}

// retry runs op again only when it fails with *TransactionConflictError.
func (s *Service) retry(ctx context.Context, name string, op func(context.Context) (Order, error)) (Order, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	attempt := 0
	return backoff.Retry(ctx, func() (Order, error) {
		attempt++
		o, err := op(ctx)
		if err == nil {
			return o, nil
		}
		var conflict *TransactionConflictError
		if !errors.As(err, &conflict) {
			return o, backoff.Permanent(err)
		}
		s.log.Debug().Err(err).Str("op", name).Int("attempt", attempt).Msg("transaction conflict, retrying")
		return o, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.attempts))
}
