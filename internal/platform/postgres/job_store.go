package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/store"
)

const jobColumns = `job_id, service_id, payload, status, lease_token, leased_at,
	percent_complete, result, seq, submitted_at, updated_at`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ServiceJob, error) {
	var (
		job        domain.ServiceJob
		status     string
		leaseToken sql.NullString
		leasedAt   sql.NullTime
		payload    []byte
		result     []byte
	)

	err := row.Scan(
		&job.JobID,
		&job.ServiceID,
		&payload,
		&status,
		&leaseToken,
		&leasedAt,
		&job.PercentComplete,
		&result,
		&job.Sequence,
		&job.SubmittedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	job.LeaseToken = leaseToken.String
	if leasedAt.Valid {
		job.LeasedAt = leasedAt.Time.UTC()
	}
	if len(payload) > 0 {
		job.Payload = json.RawMessage(payload)
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	job.SubmittedAt = job.SubmittedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CreateJob implements store.JobStore.CreateJob.
// Returns store.ErrJobExists for a reused job ID and store.ErrServiceNotFound
// when the service is not registered.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.ServiceJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.JobID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO service_jobs (job_id, service_id, payload, status, percent_complete, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		job.JobID,
		job.ServiceID,
		nullableJSON(job.Payload),
		job.Status,
		job.PercentComplete,
		job.SubmittedAt,
		job.UpdatedAt,
	).Scan(&job.Sequence)

	if err != nil {
		switch {
		case IsUniqueViolation(err):
			log.Warn("job already exists", slog.String("job_id", job.JobID))
			return store.ErrJobExists
		case IsForeignKeyViolation(err):
			log.Warn("job references unknown service",
				slog.String("job_id", job.JobID),
				slog.String("service_id", job.ServiceID))
			return store.ErrServiceNotFound
		}

		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.JobID),
			slog.String("service_id", job.ServiceID))
		return MapError(err)
	}

	log.Debug("job created",
		slog.String("job_id", job.JobID),
		slog.String("service_id", job.ServiceID),
		slog.Int64("seq", job.Sequence))
	return nil
}

// GetJob implements store.JobStore.GetJob.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*domain.ServiceJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + jobColumns + ` FROM service_jobs WHERE job_id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", jobID))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID))
		return nil, MapError(err)
	}
	return job, nil
}

// LeaseNextJob implements store.JobStore.LeaseNextJob.
// Concurrent callers skip rows locked by each other, so each one either
// leases a distinct job or finds the queue empty.
func (s *PostgresJobStore) LeaseNextJob(
	ctx context.Context,
	serviceID string,
	leaseToken string,
	now time.Time,
	staleBefore time.Time,
) (*domain.ServiceJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		WITH next_job AS (
			SELECT job_id
			FROM service_jobs
			WHERE service_id = $1
			  AND (status = 'Pending' OR (status = 'Leased' AND leased_at < $4))
			ORDER BY seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE service_jobs AS j
		SET status = 'Leased', lease_token = $2, leased_at = $3, updated_at = $3
		FROM next_job
		WHERE j.job_id = next_job.job_id
		RETURNING j.job_id, j.service_id, j.payload, j.status, j.lease_token, j.leased_at,
			j.percent_complete, j.result, j.seq, j.submitted_at, j.updated_at
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, serviceID, leaseToken, now.UTC(), staleBefore.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to lease job",
			slog.String("error", err.Error()),
			slog.String("service_id", serviceID))
		return nil, MapError(err)
	}

	log.Debug("job leased",
		slog.String("job_id", job.JobID),
		slog.String("service_id", serviceID))
	return job, nil
}

// UpdateJob implements store.JobStore.UpdateJob.
// The stored row is locked and compared with prev before it is replaced.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, prev, next *domain.ServiceJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	err := s.withTx(ctx, func(ctx context.Context, db store.DBTX) error {
		var (
			status     string
			leaseToken sql.NullString
		)
		err := db.QueryRowContext(ctx,
			`SELECT status, lease_token FROM service_jobs WHERE job_id = $1 FOR UPDATE`,
			prev.JobID,
		).Scan(&status, &leaseToken)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrJobNotFound
			}
			return MapError(err)
		}

		if domain.JobStatus(status) != prev.Status || leaseToken.String != prev.LeaseToken {
			return store.ErrConflict
		}

		_, err = db.ExecContext(ctx, `
			UPDATE service_jobs
			SET status = $2, lease_token = $3, leased_at = $4,
				percent_complete = $5, result = $6, updated_at = $7
			WHERE job_id = $1
		`,
			prev.JobID,
			next.Status,
			nullableString(next.LeaseToken),
			nullableTime(next.LeasedAt),
			next.PercentComplete,
			nullableJSON(next.Result),
			next.UpdatedAt,
		)
		return MapError(err)
	})

	if err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrJobNotFound) {
			log.Debug("job update not applied",
				slog.String("job_id", prev.JobID),
				slog.String("reason", err.Error()))
			return err
		}
		log.Error("failed to update job",
			slog.String("error", err.Error()),
			slog.String("job_id", prev.JobID))
		return err
	}

	log.Debug("job updated",
		slog.String("job_id", prev.JobID),
		slog.String("status", string(next.Status)))
	return nil
}

// CountJobs implements store.JobStore.CountJobs.
func (s *PostgresJobStore) CountJobs(ctx context.Context, serviceID string) (domain.QueueStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'Leased'),
			COUNT(*) FILTER (WHERE status = 'Running'),
			COUNT(*) FILTER (WHERE status IN ('Success', 'Failed', 'Cancelled'))
		FROM service_jobs
		WHERE service_id = $1
	`

	var stats domain.QueueStats
	err := s.db.QueryRowContext(ctx, query, serviceID).Scan(
		&stats.Pending,
		&stats.Leased,
		&stats.Running,
		&stats.TotalHistorical,
	)
	if err != nil {
		log.Error("failed to count jobs",
			slog.String("error", err.Error()),
			slog.String("service_id", serviceID))
		return domain.QueueStats{}, MapError(err)
	}
	return stats, nil
}

// withTx runs fn in a new transaction when the store holds a *sql.DB, and
// directly on the existing handle when it already holds a transaction.
func (s *PostgresJobStore) withTx(ctx context.Context, fn func(context.Context, store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(logger.WithLogger(ctx, s.logger), db, "job", func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}
