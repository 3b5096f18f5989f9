package api

import (
	"encoding/json"

	"github.com/phrazzld/taskq/internal/domain"
)

// ServiceRequest is the body of service registration and update requests.
type ServiceRequest struct {
	ServiceID        string                  `json:"service_id,omitempty"`
	Name             string                  `json:"name"                      validate:"required"`
	URL              string                  `json:"url,omitempty"             validate:"omitempty,url"`
	Method           string                  `json:"method,omitempty"          validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	IsTaskManaged    bool                    `json:"is_task_managed"`
	Timeout          int                     `json:"timeout,omitempty"         validate:"gte=0"`
	ResourceMetadata domain.ResourceMetadata `json:"resource_metadata"`
}

func (r *ServiceRequest) toDomain() *domain.ServiceMetadata {
	return &domain.ServiceMetadata{
		ServiceID:        r.ServiceID,
		Name:             r.Name,
		URL:              r.URL,
		Method:           r.Method,
		IsTaskManaged:    r.IsTaskManaged,
		Timeout:          r.Timeout,
		ResourceMetadata: r.ResourceMetadata,
	}
}

// ServiceIDResponse acknowledges a service write.
type ServiceIDResponse struct {
	ServiceID string `json:"service_id"`
}

// StatusUpdateRequest is the body a worker posts to report on a job.
type StatusUpdateRequest struct {
	Status          string          `json:"status"           validate:"required,oneof=Pending Leased Running Success Failed Cancelled"`
	PercentComplete int             `json:"percent_complete" validate:"gte=0,lte=100"`
	Result          json.RawMessage `json:"result,omitempty"`
	LeaseToken      string          `json:"lease_token,omitempty"`
	Service         *ServiceRequest `json:"service,omitempty"`
}

func (r *StatusUpdateRequest) toDomain() domain.StatusUpdate {
	update := domain.StatusUpdate{
		Status:          domain.JobStatus(r.Status),
		PercentComplete: r.PercentComplete,
		Result:          r.Result,
		LeaseToken:      r.LeaseToken,
	}
	if r.Service != nil {
		update.Service = r.Service.toDomain()
	}
	return update
}

// StatusUpdateResponse acknowledges an applied status update.
type StatusUpdateResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

// SubmitJobRequest is the body of a job submission.
type SubmitJobRequest struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JobResponse describes a job accepted onto a queue.
type JobResponse struct {
	JobID     string           `json:"job_id"`
	ServiceID string           `json:"service_id"`
	Status    domain.JobStatus `json:"status"`
}

func jobToResponse(job *domain.ServiceJob) JobResponse {
	return JobResponse{
		JobID:     job.JobID,
		ServiceID: job.ServiceID,
		Status:    job.Status,
	}
}
