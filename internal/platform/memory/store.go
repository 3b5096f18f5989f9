package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/store"
)

// Store keeps jobs and services in memory. A single mutex guards all state,
// which makes every operation atomic with respect to the others.
type Store struct {
	mu       sync.Mutex
	seq      int64
	jobs     map[string]*domain.ServiceJob
	queues   map[string][]string // service id -> job ids in submission order
	services map[string]*domain.ServiceMetadata
}

var (
	_ store.JobStore     = (*Store)(nil)
	_ store.ServiceStore = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*domain.ServiceJob),
		queues:   make(map[string][]string),
		services: make(map[string]*domain.ServiceMetadata),
	}
}

// CreateJob implements store.JobStore.
func (s *Store) CreateJob(ctx context.Context, job *domain.ServiceJob) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "create", err.Error(), store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[job.ServiceID]; !ok {
		return store.ErrServiceNotFound
	}
	if _, ok := s.jobs[job.JobID]; ok {
		return store.ErrJobExists
	}

	s.seq++
	job.Sequence = s.seq
	s.jobs[job.JobID] = job.Clone()
	s.queues[job.ServiceID] = append(s.queues[job.ServiceID], job.JobID)
	return nil
}

// GetJob implements store.JobStore.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.ServiceJob, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job.Clone(), nil
}

// LeaseNextJob implements store.JobStore.
func (s *Store) LeaseNextJob(
	ctx context.Context,
	serviceID string,
	leaseToken string,
	now time.Time,
	staleBefore time.Time,
) (*domain.ServiceJob, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, jobID := range s.queues[serviceID] {
		job := s.jobs[jobID]
		eligible := job.Status == domain.JobStatusPending ||
			(job.Status == domain.JobStatusLeased && job.LeasedAt.Before(staleBefore))
		if !eligible {
			continue
		}

		job.Status = domain.JobStatusLeased
		job.LeaseToken = leaseToken
		job.LeasedAt = now.UTC()
		job.UpdatedAt = now.UTC()
		return job.Clone(), nil
	}

	return nil, store.ErrJobNotFound
}

// UpdateJob implements store.JobStore.
func (s *Store) UpdateJob(ctx context.Context, prev, next *domain.ServiceJob) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return store.NewStoreError("job", "update", err.Error(), store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[prev.JobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if current.Status != prev.Status || current.LeaseToken != prev.LeaseToken {
		return store.ErrConflict
	}

	updated := next.Clone()
	updated.Sequence = current.Sequence
	updated.SubmittedAt = current.SubmittedAt
	s.jobs[prev.JobID] = updated
	return nil
}

// CountJobs implements store.JobStore.
func (s *Store) CountJobs(ctx context.Context, serviceID string) (domain.QueueStats, error) {
	if err := checkContext(ctx); err != nil {
		return domain.QueueStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.QueueStats
	for _, jobID := range s.queues[serviceID] {
		switch status := s.jobs[jobID].Status; {
		case status == domain.JobStatusPending:
			stats.Pending++
		case status == domain.JobStatusLeased:
			stats.Leased++
		case status == domain.JobStatusRunning:
			stats.Running++
		case status.IsTerminal():
			stats.TotalHistorical++
		}
	}
	return stats, nil
}

// UpsertService implements store.ServiceStore.
func (s *Store) UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	if svc.ServiceID == "" {
		return "", store.NewStoreError("service", "upsert", "service id is required", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneService(svc)
	if existing, ok := s.services[svc.ServiceID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	s.services[svc.ServiceID] = stored
	return svc.ServiceID, nil
}

// UpdateService implements store.ServiceStore.
func (s *Store) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.services[svc.ServiceID]
	if !ok {
		return store.ErrServiceNotFound
	}

	stored := cloneService(svc)
	stored.CreatedAt = existing.CreatedAt
	s.services[svc.ServiceID] = stored
	return nil
}

// GetService implements store.ServiceStore.
func (s *Store) GetService(ctx context.Context, serviceID string) (*domain.ServiceMetadata, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[serviceID]
	if !ok {
		return nil, store.ErrServiceNotFound
	}
	return cloneService(svc), nil
}

func cloneService(svc *domain.ServiceMetadata) *domain.ServiceMetadata {
	c := *svc
	if svc.ResourceMetadata.Attributes != nil {
		c.ResourceMetadata.Attributes = make(map[string]any, len(svc.ResourceMetadata.Attributes))
		for k, v := range svc.ResourceMetadata.Attributes {
			c.ResourceMetadata.Attributes[k] = v
		}
	}
	return &c
}

// checkContext reports a done ctx as an unavailable store, keeping the
// context error matchable.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}
