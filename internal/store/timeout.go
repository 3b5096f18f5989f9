package store

import (
	"context"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
)

// TimeoutJobStore bounds every call of the wrapped JobStore by a deadline.
type TimeoutJobStore struct {
	inner   JobStore
	timeout time.Duration
}

var _ JobStore = (*TimeoutJobStore)(nil)

// NewTimeoutJobStore wraps inner. A non-positive timeout returns inner as is.
func NewTimeoutJobStore(inner JobStore, timeout time.Duration) JobStore {
	if timeout <= 0 {
		return inner
	}
	return &TimeoutJobStore{inner: inner, timeout: timeout}
}

// CreateJob implements JobStore.
func (s *TimeoutJobStore) CreateJob(ctx context.Context, job *domain.ServiceJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.CreateJob(ctx, job)
}

// GetJob implements JobStore.
func (s *TimeoutJobStore) GetJob(ctx context.Context, jobID string) (*domain.ServiceJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.GetJob(ctx, jobID)
}

// LeaseNextJob implements JobStore.
func (s *TimeoutJobStore) LeaseNextJob(
	ctx context.Context,
	serviceID string,
	leaseToken string,
	now time.Time,
	staleBefore time.Time,
) (*domain.ServiceJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.LeaseNextJob(ctx, serviceID, leaseToken, now, staleBefore)
}

// UpdateJob implements JobStore.
func (s *TimeoutJobStore) UpdateJob(ctx context.Context, prev, next *domain.ServiceJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.UpdateJob(ctx, prev, next)
}

// CountJobs implements JobStore.
func (s *TimeoutJobStore) CountJobs(ctx context.Context, serviceID string) (domain.QueueStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.CountJobs(ctx, serviceID)
}

// TimeoutServiceStore bounds every call of the wrapped ServiceStore by a deadline.
type TimeoutServiceStore struct {
	inner   ServiceStore
	timeout time.Duration
}

var _ ServiceStore = (*TimeoutServiceStore)(nil)

// NewTimeoutServiceStore wraps inner. A non-positive timeout returns inner as is.
func NewTimeoutServiceStore(inner ServiceStore, timeout time.Duration) ServiceStore {
	if timeout <= 0 {
		return inner
	}
	return &TimeoutServiceStore{inner: inner, timeout: timeout}
}

// UpsertService implements ServiceStore.
func (s *TimeoutServiceStore) UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.UpsertService(ctx, svc)
}

// UpdateService implements ServiceStore.
func (s *TimeoutServiceStore) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.UpdateService(ctx, svc)
}

// GetService implements ServiceStore.
func (s *TimeoutServiceStore) GetService(ctx context.Context, serviceID string) (*domain.ServiceMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.inner.GetService(ctx, serviceID)
}
