package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// mapErr turns driver errors the service cares about into domain errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var conflict *orders.TransactionConflictError
	if errors.As(err, &conflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return &orders.TransactionConflictError{Err: err}
	case codeUniqueViolation:
		return &orders.ValidationError{Field: pgErr.ConstraintName, Reason: "already exists"}
	case codeForeignKeyViolation, codeCheckViolation:
		return &orders.ValidationError{Field: pgErr.ConstraintName, Reason: pgErr.Message}
	}
	return err
}
