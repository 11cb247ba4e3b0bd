package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes that mean "another transaction got there first".
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

const (
	cartPerGuestConstraint = "orders_one_cart_per_guest"
	slotConstraint         = "slot_bookings_slot_key"
)

// classifyPgError maps contention failures to ErrConflictRetry and a lost
// slot race to ErrSlotUnavailable. Other errors pass through.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrConflictRetry, err)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case cartPerGuestConstraint:
			return fmt.Errorf("%w: %w", domain.ErrConflictRetry, err)
		case slotConstraint:
			return fmt.Errorf("%w: %w", domain.ErrSlotUnavailable, err)
		}
	}
	return err
}

// notFound turns pgx.ErrNoRows into ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

type lockTimeoutSetter interface {
	SetLockTimeout(ctx context.Context, timeout string) error
}

// inTx runs fn in its own transaction, committing on success. Conflicts are
// retried with backoff on a fresh transaction; the last conflict surfaces as
// ErrConflictRetry.
func inTx[S lockTimeoutSetter, T any](ctx context.Context, env Env, pool TxBeginner, newStore func(database.DBTX) S, fn func(S) (T, error)) (T, error) {
	retryable := func(err error) bool {
		if errors.Is(err, domain.ErrConflictRetry) {
			env.Metrics.ConflictRetry()
			return true
		}
		return false
	}

	return retry.Do(ctx, env.Retry, retryable, func() (T, error) {
		var zero T

		tx, err := pool.Begin(ctx)
		if err != nil {
			return zero, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		store := newStore(tx)
		if env.LockTimeout > 0 {
			timeout := fmt.Sprintf("%dms", env.LockTimeout.Milliseconds())
			if err := store.SetLockTimeout(ctx, timeout); err != nil {
				return zero, classifyPgError(fmt.Errorf("set lock timeout: %w", err))
			}
		}

		result, err := fn(store)
		if err != nil {
			return zero, classifyPgError(err)
		}

		if err := tx.Commit(ctx); err != nil {
			return zero, classifyPgError(fmt.Errorf("commit tx: %w", err))
		}
		return result, nil
	})
}
