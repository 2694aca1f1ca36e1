package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"cvbot-backend/internal/shared/telemetry"
)

const (
	txAttempts = 3
	txBackoff  = 25 * time.Millisecond
)

// Postgres codes worth replaying: the transaction lost a serialization or
// deadlock race and did nothing.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// IsTransient reports whether err is a Postgres error a fresh transaction
// can succeed past.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && transientCodes[pgErr.Code]
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// otherwise. Transient failures replay fn in a new transaction, so fn must
// only touch the database.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = runTx(ctx, database, fn)
		if err == nil || !IsTransient(err) || attempt == txAttempts {
			return err
		}
		telemetry.Warn("db.tx_retry", map[string]any{"attempt": attempt, "error": err})
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * txBackoff):
		}
	}
	return err
}

func runTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
