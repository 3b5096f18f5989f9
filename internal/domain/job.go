package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a ServiceJob
type JobStatus string

// Possible job status values
const (
	JobStatusPending   JobStatus = "Pending"
	JobStatusLeased    JobStatus = "Leased"
	JobStatusRunning   JobStatus = "Running"
	JobStatusSuccess   JobStatus = "Success"
	JobStatusFailed    JobStatus = "Failed"
	JobStatusCancelled JobStatus = "Cancelled"
)

// Common validation errors for ServiceJob
var (
	ErrJobIDEmpty         = errors.New("job ID cannot be empty")
	ErrJobServiceIDEmpty  = errors.New("job service ID cannot be empty")
	ErrJobStatusInvalid   = errors.New("invalid job status")
	ErrPercentOutOfRange  = errors.New("percent complete must be between 0 and 100")
	ErrLeaseFieldsInvalid = errors.New("lease token and lease time must be set only while leased or running")
)

// transitions is the status lattice. Anything not listed is rejected,
// including a repeated Running report.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusLeased},
	JobStatusLeased:  {JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusCancelled},
	JobStatusRunning: {JobStatusSuccess, JobStatusFailed, JobStatusCancelled},
}

// AllJobStatuses returns every known status in lattice order.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending, JobStatusLeased, JobStatusRunning,
		JobStatusSuccess, JobStatusFailed, JobStatusCancelled,
	}
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusLeased, JobStatusRunning,
		JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is one of Success, Failed or Cancelled.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusCancelled
}

// holdsLease reports whether a job in status s owns a lease.
func (s JobStatus) holdsLease() bool {
	return s == JobStatusLeased || s == JobStatusRunning
}

// CanTransition reports whether from -> to is an edge of the status lattice.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns nil when from -> to is legal, ErrAlreadyTerminal
// when from is terminal and ErrInvalidTransition otherwise.
func ValidateTransition(from, to JobStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrJobStatusInvalid, to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrAlreadyTerminal, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ServiceJob is one unit of work dispatched to a task-managed service.
// Jobs are retained after they reach a terminal status.
type ServiceJob struct {
	JobID           string          `json:"job_id"`
	ServiceID       string          `json:"service_id"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Status          JobStatus       `json:"status"`
	LeaseToken      string          `json:"lease_token,omitempty"`
	LeasedAt        time.Time       `json:"leased_at,omitempty"`
	PercentComplete int             `json:"percent_complete"`
	Result          json.RawMessage `json:"result,omitempty"`
	// Sequence is assigned by the store on enrolment and orders the queue.
	Sequence    int64     `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewServiceJob creates a Pending job for serviceID.
// Returns an error if validation fails.
func NewServiceJob(jobID, serviceID string, payload json.RawMessage, now time.Time) (*ServiceJob, error) {
	job := &ServiceJob{
		JobID:       jobID,
		ServiceID:   serviceID,
		Payload:     payload,
		Status:      JobStatusPending,
		SubmittedAt: now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the ServiceJob has valid data.
func (j *ServiceJob) Validate() error {
	if j.JobID == "" {
		return ErrJobIDEmpty
	}
	if j.ServiceID == "" {
		return ErrJobServiceIDEmpty
	}
	if !j.Status.IsValid() {
		return ErrJobStatusInvalid
	}
	if j.PercentComplete < 0 || j.PercentComplete > 100 {
		return ErrPercentOutOfRange
	}
	leaseSet := j.LeaseToken != "" || !j.LeasedAt.IsZero()
	if leaseSet != j.Status.holdsLease() {
		return ErrLeaseFieldsInvalid
	}
	return nil
}

// Lease returns the active lease of the job, if it holds one.
func (j *ServiceJob) Lease(ttl time.Duration) (QueueLease, bool) {
	if !j.Status.holdsLease() {
		return QueueLease{}, false
	}
	return QueueLease{
		ServiceID:  j.ServiceID,
		JobID:      j.JobID,
		LeaseToken: j.LeaseToken,
		ExpiresAt:  j.LeasedAt.Add(ttl),
	}, true
}

// Clone returns a deep copy of the job.
func (j *ServiceJob) Clone() *ServiceJob {
	c := *j
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	return &c
}

// Apply returns the job that results from applying update at time now.
// The receiver is not modified. A Pending -> Leased update is stamped with
// leaseToken; terminal updates store the result and release the lease.
func (j *ServiceJob) Apply(update StatusUpdate, leaseToken string, now time.Time) (*ServiceJob, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTransition(j.Status, update.Status); err != nil {
		return nil, err
	}
	if update.LeaseToken != "" && update.LeaseToken != j.LeaseToken {
		return nil, ErrLeaseMismatch
	}

	next := j.Clone()
	next.Status = update.Status
	next.PercentComplete = update.PercentComplete
	next.UpdatedAt = now.UTC()

	switch {
	case update.Status == JobStatusLeased:
		next.LeaseToken = leaseToken
		next.LeasedAt = now.UTC()
	case update.Status.IsTerminal():
		next.Result = update.Result
		next.LeaseToken = ""
		next.LeasedAt = time.Time{}
	}

	return next, nil
}

// StatusUpdate is a worker-submitted delta for one ServiceJob.
// It is never persisted on its own.
type StatusUpdate struct {
	Status          JobStatus       `json:"status"`
	PercentComplete int             `json:"percent_complete"`
	Result          json.RawMessage `json:"result,omitempty"`
	// LeaseToken, when set, must match the job's current lease.
	LeaseToken string `json:"lease_token,omitempty"`
	// Service carries revised metadata of the owning service, if any.
	Service *ServiceMetadata `json:"service,omitempty"`
}

// Validate checks the update in isolation of any job.
func (u StatusUpdate) Validate() error {
	if !u.Status.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrJobStatusInvalid, u.Status)
	}
	if u.PercentComplete < 0 || u.PercentComplete > 100 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrPercentOutOfRange)
	}
	if len(u.Result) > 0 && !u.Status.IsTerminal() {
		return fmt.Errorf("%w: result is only accepted with a terminal status", ErrValidation)
	}
	if len(u.Result) > 0 && !json.Valid(u.Result) {
		return fmt.Errorf("%w: result is not valid JSON", ErrValidation)
	}
	return nil
}

// QueueLease is the right of one worker to report on one job until ExpiresAt.
type QueueLease struct {
	ServiceID  string
	JobID      string
	LeaseToken string
	ExpiresAt  time.Time
}

// QueueStats is a read-only aggregate over one service's queue.
type QueueStats struct {
	Pending int `json:"pending"`
	Leased  int `json:"leased"`
	Running int `json:"running"`
	// TotalHistorical counts jobs that reached a terminal status.
	TotalHistorical int `json:"total_historical"`
}
