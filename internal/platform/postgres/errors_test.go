package postgres_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskq/internal/platform/postgres"
	"github.com/phrazzld/taskq/internal/store"
	"github.com/stretchr/testify/assert"
)

// Mock PgError creation helper
func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		Detail:         "error details",
		SchemaName:     "public",
		TableName:      "service_jobs",
		ColumnName:     "status",
		ConstraintName: "service_jobs_status_check",
	}
}

// MockResult implements sql.Result for testing
type MockResult struct {
	rowsAffected int64
	err          error
}

func (m MockResult) LastInsertId() (int64, error) {
	return 0, m.err
}

func (m MockResult) RowsAffected() (int64, error) {
	return m.rowsAffected, m.err
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{"no_rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique_violation", newPgError("23505"), store.ErrDuplicate},
		{"foreign_key_violation", newPgError("23503"), store.ErrInvalidEntity},
		{"check_violation", newPgError("23514"), store.ErrInvalidEntity},
		{"connection_failure", newPgError("08006"), store.ErrUnavailable},
		{"admin_shutdown", newPgError("57P01"), store.ErrUnavailable},
		{"query_canceled", newPgError("57014"), store.ErrUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), store.ErrUnavailable},
		{"bad_conn", driver.ErrBadConn, store.ErrUnavailable},
		{"conn_done", sql.ErrConnDone, store.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := postgres.MapError(tt.err)
			assert.ErrorIs(t, mapped, tt.wantIs)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unmapped_passthrough", func(t *testing.T) {
		original := errors.New("something else")
		assert.Equal(t, original, postgres.MapError(original))

		syntax := newPgError("42601")
		assert.Equal(t, error(syntax), postgres.MapError(syntax))
	})
}

func TestIsUnavailable(t *testing.T) {
	assert.False(t, postgres.IsUnavailable(nil))
	assert.False(t, postgres.IsUnavailable(newPgError("23505")))
	assert.False(t, postgres.IsUnavailable(context.Canceled))
	assert.True(t, postgres.IsUnavailable(newPgError("08001")))
	assert.True(t, postgres.IsUnavailable(newPgError("53300")))
}

func TestViolationHelpers(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", newPgError("23505"))
	assert.True(t, postgres.IsUniqueViolation(wrapped))
	assert.False(t, postgres.IsForeignKeyViolation(wrapped))

	fk := newPgError("23503")
	assert.True(t, postgres.IsForeignKeyViolation(fk))
	assert.False(t, postgres.IsUniqueViolation(fk))
	assert.False(t, postgres.IsUniqueViolation(errors.New("plain")))
}

func TestCheckRowsAffected(t *testing.T) {
	tests := []struct {
		name     string
		result   sql.Result
		notFound error
		wantIs   error
		wantErr  bool
	}{
		{name: "one_row", result: MockResult{rowsAffected: 1}},
		{name: "zero_rows_default", result: MockResult{}, wantIs: store.ErrNotFound, wantErr: true},
		{name: "zero_rows_specific", result: MockResult{}, notFound: store.ErrServiceNotFound, wantIs: store.ErrServiceNotFound, wantErr: true},
		{name: "rows_error", result: MockResult{err: errors.New("boom")}, wantErr: true},
		{name: "nil_result", result: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := postgres.CheckRowsAffected(tt.result, tt.notFound)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}
