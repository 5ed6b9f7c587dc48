package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))

	plain := errors.New("plain")
	assert.Same(t, plain, mapErr(plain))

	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected} {
		err := mapErr(fmt.Errorf("line 0: %w", &pgconn.PgError{Code: code}))
		var conflict *orders.TransactionConflictError
		assert.ErrorAs(t, err, &conflict, code)
	}

	var verr *orders.ValidationError
	err := mapErr(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "products_pkey"})
	if assert.ErrorAs(t, err, &verr) {
		assert.Equal(t, "products_pkey", verr.Field)
	}
	assert.ErrorAs(t, mapErr(&pgconn.PgError{Code: codeCheckViolation}), &verr)
	assert.ErrorAs(t, mapErr(&pgconn.PgError{Code: codeForeignKeyViolation}), &verr)

	other := &pgconn.PgError{Code: "42P01"}
	assert.Same(t, error(other), mapErr(other))
}

func TestMapErrKeepsDomainErrors(t *testing.T) {
	stock := &orders.InsufficientStockError{ProductID: "p", Requested: 2, Remaining: 1}
	err := mapErr(fmt.Errorf("line 0 (product p): %w", stock))
	var got *orders.InsufficientStockError
	assert.ErrorAs(t, err, &got)

	conflict := &orders.TransactionConflictError{Err: errors.New("x")}
	assert.Same(t, error(conflict), mapErr(conflict))
}

func TestParseMoney(t *testing.T) {
	d, err := parseMoney("12.50")
	assert.NoError(t, err)
	assert.Equal(t, "12.5", d.String())

	_, err = parseMoney("abc")
	assert.Error(t, err)
}
