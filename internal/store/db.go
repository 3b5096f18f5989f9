package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the SQL stores run on. A store built on a
// *sql.DB opens its own transactions for compare-and-swap updates; a store
// built on a *sql.Tx joins the caller's transaction instead.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
