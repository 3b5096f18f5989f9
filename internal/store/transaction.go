package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/taskq/internal/platform/logger"
)

// TxFn runs inside a transaction opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in a transaction on db and commits when fn
// returns nil.
//
// Errors are reported in store terms. Failing to begin or commit means the
// write did not land and is returned as a *StoreError matching
// ErrUnavailable, so callers may retry. An error from fn is returned
// unchanged after the rollback, which keeps ErrConflict and ErrNotFound
// matchable. A panic in fn rolls back and is re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, entity string, fn TxFn) error {
	log := logger.FromContext(ctx).With("entity", entity)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.ErrorContext(ctx, "failed to begin transaction", "error", err)
		return NewStoreError(entity, "begin", "failed to begin transaction",
			fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.ErrorContext(ctx, "failed to roll back transaction after panic",
					"error", rbErr,
					"panic", p)
			}
			// ALLOW-PANIC: propagating a panic raised inside the transaction
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.ErrorContext(ctx, "failed to roll back transaction",
				"error", rbErr,
				"cause", err)
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.ErrorContext(ctx, "failed to commit transaction", "error", err)
		return NewStoreError(entity, "commit", "failed to commit transaction",
			fmt.Errorf("%w: %w: %w", ErrUnavailable, ErrTransactionFailed, err))
	}
	return nil
}
