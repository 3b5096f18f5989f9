package store

import (
	"context"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
)

// JobStore defines the interface for persisting ServiceJobs in the
// authoritative store. All mutations must be atomic in the store itself:
// multiple service instances may operate on the same queue concurrently.
// Version: 1.0
type JobStore interface {
	// CreateJob enrols a new job. The store assigns job.Sequence.
	// Returns ErrJobExists if the job ID is already in use and
	// ErrServiceNotFound if the service is not registered.
	CreateJob(ctx context.Context, job *domain.ServiceJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetJob(ctx context.Context, jobID string) (*domain.ServiceJob, error)

	// LeaseNextJob selects the oldest job of serviceID that is Pending, or
	// Leased with a lease taken before staleBefore, and marks it Leased with
	// leaseToken at now, in a single atomic step. Two concurrent callers
	// never receive the same job.
	// Returns ErrJobNotFound if no job is eligible.
	LeaseNextJob(
		ctx context.Context,
		serviceID string,
		leaseToken string,
		now time.Time,
		staleBefore time.Time,
	) (*domain.ServiceJob, error)

	// UpdateJob replaces prev with next if the stored job still has prev's
	// status and lease token.
	// Returns ErrConflict if the stored job changed, ErrJobNotFound if it is gone.
	UpdateJob(ctx context.Context, prev, next *domain.ServiceJob) error

	// CountJobs aggregates the queue of serviceID. It never mutates state.
	CountJobs(ctx context.Context, serviceID string) (domain.QueueStats, error)
}
