package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/identifier"
	"github.com/phrazzld/taskq/internal/metrics"
	"github.com/phrazzld/taskq/internal/store"
)

// IDSource assigns job identifiers.
type IDSource interface {
	NewID(ctx context.Context) (identifier.ID, error)
}

// MetadataWriter applies revised service metadata across both stores.
type MetadataWriter interface {
	UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error
}

// Manager runs the queue operations of every task-managed service.
type Manager struct {
	jobs        store.JobStore
	services    store.ServiceStore
	ids         IDSource
	metadata    MetadataWriter
	clock       clockwork.Clock
	leaseTTL    time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewManager wires a Manager. clock and m may be nil.
func NewManager(
	jobs store.JobStore,
	services store.ServiceStore,
	ids IDSource,
	metadata MetadataWriter,
	cfg config.QueueConfig,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Manager, error) {
	if jobs == nil {
		return nil, errors.New("job store cannot be nil")
	}
	if services == nil {
		return nil, errors.New("service store cannot be nil")
	}
	if ids == nil {
		return nil, errors.New("identifier source cannot be nil")
	}
	if metadata == nil {
		return nil, errors.New("metadata writer cannot be nil")
	}
	if cfg.LeaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive, got %s", cfg.LeaseTTL)
	}
	if cfg.MaxUpdateAttempts < 1 {
		return nil, fmt.Errorf("max update attempts must be at least 1, got %d", cfg.MaxUpdateAttempts)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		jobs:        jobs,
		services:    services,
		ids:         ids,
		metadata:    metadata,
		clock:       clock,
		leaseTTL:    cfg.LeaseTTL,
		maxAttempts: cfg.MaxUpdateAttempts,
		metrics:     m,
		logger:      logger.With("component", "queue_manager"),
	}, nil
}

// LeaseTTL returns how long a lease stays exclusive.
func (m *Manager) LeaseTTL() time.Duration {
	return m.leaseTTL
}

// EnqueueJob adds a Pending job with payload to the queue of serviceID.
func (m *Manager) EnqueueJob(ctx context.Context, serviceID string, payload json.RawMessage) (*domain.ServiceJob, error) {
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", domain.ErrValidation)
	}

	svc, err := m.services.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsTaskManaged {
		return nil, ErrNotTaskManaged
	}

	id, err := m.ids.NewID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to assign job id: %w", err)
	}

	job, err := domain.NewServiceJob(id.Value, serviceID, payload, m.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := m.jobs.CreateJob(ctx, job); err != nil {
		m.logger.ErrorContext(ctx, "failed to enqueue job",
			"error", err,
			"service_id", serviceID,
			"job_id", job.JobID)
		return nil, err
	}

	m.logger.InfoContext(ctx, "job enqueued",
		"service_id", serviceID,
		"job_id", job.JobID,
		"id_source", id.Source)
	return job, nil
}

// LeaseNextJob leases the oldest eligible job of serviceID. The boolean is
// false when the queue holds nothing to lease; that is not an error.
func (m *Manager) LeaseNextJob(ctx context.Context, serviceID string) (*domain.ServiceJob, bool, error) {
	now := m.clock.Now().UTC()
	token := uuid.NewString()

	job, err := m.jobs.LeaseNextJob(ctx, serviceID, token, now, now.Add(-m.leaseTTL))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			m.metrics.LeaseAttempt(metrics.OutcomeEmpty)
			return nil, false, nil
		}
		m.metrics.LeaseAttempt(metrics.OutcomeError)
		m.logger.ErrorContext(ctx, "failed to lease job",
			"error", err,
			"service_id", serviceID)
		return nil, false, err
	}

	m.metrics.LeaseAttempt(metrics.OutcomeLeased)
	m.logger.DebugContext(ctx, "job leased",
		"service_id", serviceID,
		"job_id", job.JobID,
		"expires_at", now.Add(m.leaseTTL))
	return job, true, nil
}

// ApplyStatusUpdate applies update to jobID of serviceID.
//
// Revised metadata on the update is written through the MetadataWriter
// before the job, and a failure there leaves the job untouched. The job
// write is compared against the status and lease observed when the update
// was validated; losing that race re-reads and re-validates the job. When
// the job write fails after the metadata was written the error is a
// *PartialUpdateError.
func (m *Manager) ApplyStatusUpdate(
	ctx context.Context,
	serviceID, jobID string,
	update domain.StatusUpdate,
) error {
	err := m.applyStatusUpdate(ctx, serviceID, jobID, update)
	switch {
	case err == nil:
		m.metrics.StatusUpdate(metrics.OutcomeApplied)
	case errors.Is(err, ErrMetadataCommitted):
		m.metrics.StatusUpdate(metrics.OutcomeError)
		m.logger.ErrorContext(ctx, "service metadata written but job update not applied",
			"error", err,
			"service_id", serviceID,
			"job_id", jobID,
			"status", update.Status)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrLeaseMismatch),
		errors.Is(err, store.ErrNotFound):
		m.metrics.StatusUpdate(metrics.OutcomeRejected)
		m.logger.InfoContext(ctx, "status update rejected",
			"reason", err,
			"service_id", serviceID,
			"job_id", jobID,
			"status", update.Status)
	default:
		m.metrics.StatusUpdate(metrics.OutcomeError)
		m.logger.ErrorContext(ctx, "failed to apply status update",
			"error", err,
			"service_id", serviceID,
			"job_id", jobID,
			"status", update.Status)
	}
	return err
}

func (m *Manager) applyStatusUpdate(
	ctx context.Context,
	serviceID, jobID string,
	update domain.StatusUpdate,
) error {
	if err := update.Validate(); err != nil {
		return err
	}

	if update.Service != nil {
		svc := *update.Service
		if svc.ServiceID == "" {
			svc.ServiceID = serviceID
		}
		if svc.ServiceID != serviceID {
			return ErrServiceMismatch
		}
		update.Service = &svc
	}

	metadataWritten := false
	fail := func(err error) error {
		if metadataWritten {
			return &PartialUpdateError{ServiceID: serviceID, JobID: jobID, Err: err}
		}
		return err
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		job, err := m.loadJob(ctx, serviceID, jobID)
		if err != nil {
			return fail(err)
		}

		leaseToken := ""
		if update.Status == domain.JobStatusLeased {
			leaseToken = uuid.NewString()
		}
		next, err := job.Apply(update, leaseToken, m.clock.Now())
		if err != nil {
			return fail(err)
		}

		if update.Service != nil && !metadataWritten {
			if err := m.metadata.UpdateService(ctx, update.Service); err != nil {
				return fmt.Errorf("failed to apply service metadata: %w", err)
			}
			metadataWritten = true
		}

		err = m.jobs.UpdateJob(ctx, job, next)
		if err == nil {
			m.logger.DebugContext(ctx, "status update applied",
				"service_id", serviceID,
				"job_id", jobID,
				"from", job.Status,
				"to", next.Status,
				"attempt", attempt)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return fail(err)
		}

		m.logger.DebugContext(ctx, "status update lost a concurrent write, retrying",
			"service_id", serviceID,
			"job_id", jobID,
			"attempt", attempt)
	}

	return fail(fmt.Errorf("%w: job %s after %d attempts", ErrUpdateContention, jobID, m.maxAttempts))
}

func (m *Manager) loadJob(ctx context.Context, serviceID, jobID string) (*domain.ServiceJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ServiceID != serviceID {
		return nil, fmt.Errorf("%w: %s is not queued for service %s", store.ErrJobNotFound, jobID, serviceID)
	}
	return job, nil
}

// QueueMetadata returns the queue counters of serviceID. An unknown service
// has an empty queue.
func (m *Manager) QueueMetadata(ctx context.Context, serviceID string) (domain.QueueStats, error) {
	stats, err := m.jobs.CountJobs(ctx, serviceID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to read queue metadata",
			"error", err,
			"service_id", serviceID)
		return domain.QueueStats{}, err
	}
	return stats, nil
}
