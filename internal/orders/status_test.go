package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPlaced, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusPending, StatusCancelled, false},
		{StatusPlaced, StatusPending, false},
		{StatusCancelled, StatusPlaced, false},
		{StatusCancelled, StatusPending, false},
		{Status("SHIPPED"), StatusCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, &ValidationError{Field: "items", Reason: "required"}, "invalid items: required")
	assert.EqualError(t, &NotFoundError{Entity: "order", ID: "o-1"}, "order o-1 not found")
	assert.EqualError(t,
		&InsufficientStockError{ProductID: "p", Requested: 4, Remaining: 3},
		"insufficient stock for product p: requested 4, remaining 3")

	conflict := &TransactionConflictError{Err: assert.AnError}
	assert.ErrorIs(t, conflict, assert.AnError)
}

func TestValidateLineItems(t *testing.T) {
	ok := []LineItem{{ProductID: "p", Quantity: 1}}
	assert.NoError(t, ValidateLineItems("u", ok))

	cases := map[string]struct {
		user  string
		items []LineItem
		field string
	}{
		"no user":       {"", ok, "user_id"},
		"no items":      {"u", nil, "items"},
		"no product id": {"u", []LineItem{{Quantity: 1}}, "items[0].product_id"},
		"zero quantity": {"u", []LineItem{ok[0], {ProductID: "q", Quantity: 0}}, "items[1].quantity"},
		"negative":      {"u", []LineItem{{ProductID: "q", Quantity: -2}}, "items[0].quantity"},
		"over int4":     {"u", []LineItem{ok[0], {ProductID: "q", Quantity: MaxQuantity + 1}}, "items[1].quantity"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateLineItems(tc.user, tc.items)
			var verr *ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tc.field, verr.Field)
			}
		})
	}
}
