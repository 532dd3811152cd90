package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error classes considered transient: serialization failures,
// deadlocks, and connection-level classes that a fresh pool connection is
// expected to clear.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgClassConnection          = "08"
)

// IsTransient reports whether the error is a transient database failure that
// a single retry on a fresh connection may resolve.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgCodeSerializationFailure || pgErr.Code == pgCodeDeadlockDetected {
			return true
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgClassConnection {
			return true
		}
	}
	return false
}

// WithRetry runs fn and retries it exactly once when the failure is
// transient. Anything else, including a failure of the retry itself, is
// returned as-is.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !IsTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}
