package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/platform/memory"
	"github.com/phrazzld/taskq/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func seedService(t *testing.T, s *memory.Store, id string) {
	t.Helper()
	_, err := s.UpsertService(context.Background(), &domain.ServiceMetadata{
		ServiceID:     id,
		Name:          id,
		IsTaskManaged: true,
		CreatedAt:     t0,
	})
	require.NoError(t, err)
}

func seedJob(t *testing.T, s *memory.Store, serviceID, jobID string, at time.Time) *domain.ServiceJob {
	t.Helper()
	job, err := domain.NewServiceJob(jobID, serviceID, json.RawMessage(`{"n":1}`), at)
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func TestCreateJobAssignsSequence(t *testing.T) {
	s := memory.NewStore()
	seedService(t, s, "S1")

	j1 := seedJob(t, s, "S1", "J1", t0)
	j2 := seedJob(t, s, "S1", "J2", t0.Add(time.Second))
	assert.Less(t, j1.Sequence, j2.Sequence)

	got, err := s.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, j1.Sequence, got.Sequence)
	assert.JSONEq(t, `{"n":1}`, string(got.Payload))
}

func TestCreateJobErrors(t *testing.T) {
	s := memory.NewStore()
	seedService(t, s, "S1")
	seedJob(t, s, "S1", "J1", t0)

	dup, err := domain.NewServiceJob("J1", "S1", nil, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateJob(context.Background(), dup), store.ErrJobExists)

	orphan, err := domain.NewServiceJob("J9", "unknown", nil, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateJob(context.Background(), orphan), store.ErrServiceNotFound)

	invalid := &domain.ServiceJob{JobID: "J3", ServiceID: "S1", Status: "Bogus"}
	assert.ErrorIs(t, s.CreateJob(context.Background(), invalid), store.ErrInvalidEntity)
}

func TestLeaseNextJobFIFO(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedService(t, s, "S1")
	seedService(t, s, "S2")
	seedJob(t, s, "S1", "J1", t0)
	seedJob(t, s, "S2", "K1", t0)
	seedJob(t, s, "S1", "J2", t0.Add(time.Second))

	first, err := s.LeaseNextJob(ctx, "S1", "tok-1", t0, t0.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "J1", first.JobID)
	assert.Equal(t, domain.JobStatusLeased, first.Status)
	assert.Equal(t, "tok-1", first.LeaseToken)
	assert.Equal(t, t0, first.LeasedAt)

	second, err := s.LeaseNextJob(ctx, "S1", "tok-2", t0, t0.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "J2", second.JobID)

	_, err = s.LeaseNextJob(ctx, "S1", "tok-3", t0, t0.Add(-time.Minute))
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	_, err = s.LeaseNextJob(ctx, "unknown", "tok-4", t0, t0)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestLeaseNextJobReclaimsStaleLease(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedService(t, s, "S1")
	seedJob(t, s, "S1", "J1", t0)

	_, err := s.LeaseNextJob(ctx, "S1", "old", t0, t0.Add(-time.Minute))
	require.NoError(t, err)

	// Lease taken at t0 is not stale yet
	_, err = s.LeaseNextJob(ctx, "S1", "new", t0.Add(time.Minute), t0)
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	later := t0.Add(10 * time.Minute)
	job, err := s.LeaseNextJob(ctx, "S1", "new", later, later.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "J1", job.JobID)
	assert.Equal(t, "new", job.LeaseToken)
	assert.Equal(t, domain.JobStatusLeased, job.Status)
}

func TestLeaseNextJobConcurrent(t *testing.T) {
	const n = 50
	ctx := context.Background()
	s := memory.NewStore()
	seedService(t, s, "S1")
	for i := 0; i < n; i++ {
		seedJob(t, s, "S1", fmt.Sprintf("J%02d", i), t0)
	}

	var mu sync.Mutex
	leased := make(map[string]string)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			job, err := s.LeaseNextJob(ctx, "S1", fmt.Sprintf("tok-%d", worker), t0, t0.Add(-time.Hour))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			_, dup := leased[job.JobID]
			assert.False(t, dup, "job %s leased twice", job.JobID)
			leased[job.JobID] = job.LeaseToken
		}(i)
	}
	wg.Wait()

	assert.Len(t, leased, n)
}

func TestUpdateJobCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedService(t, s, "S1")
	seedJob(t, s, "S1", "J1", t0)

	leased, err := s.LeaseNextJob(ctx, "S1", "tok", t0, t0.Add(-time.Hour))
	require.NoError(t, err)

	running, err := leased.Apply(domain.StatusUpdate{Status: domain.JobStatusRunning, PercentComplete: 10}, "", t0)
	require.NoError(t, err)
	require.NoError(t, s.UpdateJob(ctx, leased, running))

	// A second writer still holding the Leased snapshot loses
	stale, err := leased.Apply(domain.StatusUpdate{Status: domain.JobStatusCancelled}, "", t0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateJob(ctx, leased, stale), store.ErrConflict)

	got, err := s.GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, got.Status)
	assert.Equal(t, 10, got.PercentComplete)

	missing := &domain.ServiceJob{JobID: "nope"}
	assert.ErrorIs(t, s.UpdateJob(ctx, missing, running), store.ErrJobNotFound)
}

func TestCountJobs(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedService(t, s, "S1")
	for i := 0; i < 4; i++ {
		seedJob(t, s, "S1", fmt.Sprintf("J%d", i), t0)
	}

	leased, err := s.LeaseNextJob(ctx, "S1", "a", t0, t0.Add(-time.Hour))
	require.NoError(t, err)
	done, err := leased.Apply(domain.StatusUpdate{Status: domain.JobStatusSuccess, PercentComplete: 100}, "", t0)
	require.NoError(t, err)
	require.NoError(t, s.UpdateJob(ctx, leased, done))

	leased, err = s.LeaseNextJob(ctx, "S1", "b", t0, t0.Add(-time.Hour))
	require.NoError(t, err)
	running, err := leased.Apply(domain.StatusUpdate{Status: domain.JobStatusRunning}, "", t0)
	require.NoError(t, err)
	require.NoError(t, s.UpdateJob(ctx, leased, running))

	_, err = s.LeaseNextJob(ctx, "S1", "c", t0, t0.Add(-time.Hour))
	require.NoError(t, err)

	stats, err := s.CountJobs(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Pending: 1, Leased: 1, Running: 1, TotalHistorical: 1}, stats)

	empty, err := s.CountJobs(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{}, empty)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	_, err := s.UpsertService(ctx, &domain.ServiceMetadata{Name: "no id"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	assert.ErrorIs(t,
		s.UpdateService(ctx, &domain.ServiceMetadata{ServiceID: "S1", Name: "x"}),
		store.ErrServiceNotFound)

	svc := &domain.ServiceMetadata{
		ServiceID: "S1",
		Name:      "geocoder",
		CreatedAt: t0,
		ResourceMetadata: domain.ResourceMetadata{
			Attributes: map[string]any{"region": "eu"},
		},
	}
	id, err := s.UpsertService(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, "S1", id)

	// Mutating the caller's copy does not leak into the store
	svc.ResourceMetadata.Attributes["region"] = "us"

	err = s.UpdateService(ctx, &domain.ServiceMetadata{ServiceID: "S1", Name: "geocoder-v2"})
	require.NoError(t, err)

	got, err := s.GetService(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "geocoder-v2", got.Name)
	assert.Equal(t, t0, got.CreatedAt)

	_, err = s.GetService(ctx, "S2")
	assert.ErrorIs(t, err, store.ErrServiceNotFound)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.NewStore()
	_, err := s.GetJob(ctx, "J1")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, store.ErrUnavailable)

	err = memory.NewSearchIndex().IndexService(ctx, &domain.ServiceMetadata{ServiceID: "S1", Name: "a"})
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestDeadlineUnderTimeoutStoreIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	jobs := store.NewTimeoutJobStore(memory.NewStore(), time.Second)
	_, err := jobs.CountJobs(ctx, "S1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.True(t, store.IsRetryable(err))
}

func TestSearchIndex(t *testing.T) {
	ctx := context.Background()
	idx := memory.NewSearchIndex()

	require.NoError(t, idx.IndexService(ctx, &domain.ServiceMetadata{ServiceID: "S1", Name: "a"}))
	require.NoError(t, idx.UpdateService(ctx, &domain.ServiceMetadata{ServiceID: "S1", Name: "b"}))
	assert.Equal(t, 1, idx.Len())

	doc, err := idx.Document("S1")
	require.NoError(t, err)
	assert.Equal(t, "b", doc.Name)

	failure := errors.New("index down")
	idx.SetFailure(failure)
	assert.ErrorIs(t, idx.IndexService(ctx, &domain.ServiceMetadata{ServiceID: "S2", Name: "c"}), failure)
	idx.SetFailure(nil)

	_, err = idx.Document("S2")
	assert.ErrorIs(t, err, store.ErrServiceNotFound)
}
