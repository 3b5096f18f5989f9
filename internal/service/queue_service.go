package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/taskq/internal/domain"
)

// Operation names carried by QueueServiceError.
const (
	OpRequestNextJob  = "request_next_job"
	OpReportStatus    = "report_status"
	OpGetQueueStats   = "get_queue_stats"
	OpSubmitJob       = "submit_job"
	OpRegisterService = "register_service"
	OpUpdateService   = "update_service"
	OpGetService      = "get_service"
)

// JobQueue is the queue behaviour the service needs.
type JobQueue interface {
	EnqueueJob(ctx context.Context, serviceID string, payload json.RawMessage) (*domain.ServiceJob, error)
	LeaseNextJob(ctx context.Context, serviceID string) (*domain.ServiceJob, bool, error)
	ApplyStatusUpdate(ctx context.Context, serviceID, jobID string, update domain.StatusUpdate) error
	QueueMetadata(ctx context.Context, serviceID string) (domain.QueueStats, error)
	LeaseTTL() time.Duration
}

// MetadataCoordinator writes service metadata to every store.
type MetadataCoordinator interface {
	UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error)
	UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error
}

// ServiceReader reads the authoritative copy of a service.
type ServiceReader interface {
	GetService(ctx context.Context, serviceID string) (*domain.ServiceMetadata, error)
}

// JobAssignment is what a worker receives when it is given a job.
type JobAssignment struct {
	JobID          string          `json:"job_id"`
	ServiceID      string          `json:"service_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	LeaseToken     string          `json:"lease_token"`
	LeaseExpiresAt time.Time       `json:"lease_expires_at"`
}

// ServiceDetails is a registered service together with its queue counters.
type ServiceDetails struct {
	domain.ServiceMetadata
	Queue domain.QueueStats `json:"queue"`
}

// QueueService provides the operations workers and operators call.
type QueueService interface {
	// RequestNextJob leases the next job of serviceID. It returns nil, nil
	// when there is nothing to do.
	RequestNextJob(ctx context.Context, serviceID string) (*JobAssignment, error)

	// ReportStatus applies a worker's status update to jobID.
	ReportStatus(ctx context.Context, serviceID, jobID string, update domain.StatusUpdate) error

	// GetQueueStats returns the queue counters of serviceID.
	GetQueueStats(ctx context.Context, serviceID string) (domain.QueueStats, error)

	// SubmitJob adds a job to the queue of serviceID.
	SubmitJob(ctx context.Context, serviceID string, payload json.RawMessage) (*domain.ServiceJob, error)

	// RegisterService stores svc and returns its id.
	RegisterService(ctx context.Context, svc *domain.ServiceMetadata) (string, error)

	// UpdateService replaces the metadata of an existing service.
	UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error

	// GetService returns a service with its queue counters.
	GetService(ctx context.Context, serviceID string) (*ServiceDetails, error)
}

type queueServiceImpl struct {
	queue       JobQueue
	coordinator MetadataCoordinator
	services    ServiceReader
	logger      *slog.Logger
}

// NewQueueService creates a QueueService.
// It returns an error if any of the required dependencies are nil.
func NewQueueService(
	queue JobQueue,
	coordinator MetadataCoordinator,
	services ServiceReader,
	logger *slog.Logger,
) (QueueService, error) {
	if queue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if coordinator == nil {
		return nil, errors.New("coordinator cannot be nil")
	}
	if services == nil {
		return nil, errors.New("service reader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &queueServiceImpl{
		queue:       queue,
		coordinator: coordinator,
		services:    services,
		logger:      logger.With("component", "queue_service"),
	}, nil
}

func (s *queueServiceImpl) RequestNextJob(ctx context.Context, serviceID string) (*JobAssignment, error) {
	if serviceID == "" {
		return nil, NewQueueServiceError(OpRequestNextJob, "", "", ErrServiceIDRequired)
	}

	job, found, err := s.queue.LeaseNextJob(ctx, serviceID)
	if err != nil {
		return nil, NewQueueServiceError(OpRequestNextJob, serviceID, "", err)
	}
	if !found {
		return nil, nil
	}

	lease, _ := job.Lease(s.queue.LeaseTTL())
	return &JobAssignment{
		JobID:          job.JobID,
		ServiceID:      job.ServiceID,
		Payload:        job.Payload,
		LeaseToken:     lease.LeaseToken,
		LeaseExpiresAt: lease.ExpiresAt,
	}, nil
}

func (s *queueServiceImpl) ReportStatus(
	ctx context.Context,
	serviceID, jobID string,
	update domain.StatusUpdate,
) error {
	if serviceID == "" {
		return NewQueueServiceError(OpReportStatus, "", jobID, ErrServiceIDRequired)
	}
	err := s.queue.ApplyStatusUpdate(ctx, serviceID, jobID, update)
	return NewQueueServiceError(OpReportStatus, serviceID, jobID, err)
}

func (s *queueServiceImpl) GetQueueStats(ctx context.Context, serviceID string) (domain.QueueStats, error) {
	stats, err := s.queue.QueueMetadata(ctx, serviceID)
	if err != nil {
		return domain.QueueStats{}, NewQueueServiceError(OpGetQueueStats, serviceID, "", err)
	}
	return stats, nil
}

func (s *queueServiceImpl) SubmitJob(
	ctx context.Context,
	serviceID string,
	payload json.RawMessage,
) (*domain.ServiceJob, error) {
	job, err := s.queue.EnqueueJob(ctx, serviceID, payload)
	if err != nil {
		return nil, NewQueueServiceError(OpSubmitJob, serviceID, "", err)
	}
	return job, nil
}

func (s *queueServiceImpl) RegisterService(ctx context.Context, svc *domain.ServiceMetadata) (string, error) {
	requested := ""
	if svc != nil {
		requested = svc.ServiceID
	}

	id, err := s.coordinator.UpsertService(ctx, svc)
	if err != nil {
		return "", NewQueueServiceError(OpRegisterService, requested, "", err)
	}

	s.logger.InfoContext(ctx, "service registered", "service_id", id)
	return id, nil
}

func (s *queueServiceImpl) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	serviceID := ""
	if svc != nil {
		serviceID = svc.ServiceID
	}
	err := s.coordinator.UpdateService(ctx, svc)
	return NewQueueServiceError(OpUpdateService, serviceID, "", err)
}

func (s *queueServiceImpl) GetService(ctx context.Context, serviceID string) (*ServiceDetails, error) {
	svc, err := s.services.GetService(ctx, serviceID)
	if err != nil {
		return nil, NewQueueServiceError(OpGetService, serviceID, "", err)
	}

	stats, err := s.queue.QueueMetadata(ctx, serviceID)
	if err != nil {
		return nil, NewQueueServiceError(OpGetService, serviceID, "", err)
	}

	return &ServiceDetails{ServiceMetadata: *svc, Queue: stats}, nil
}
