package queue

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskq/internal/domain"
)

var (
	// ErrNotTaskManaged is returned when a job is submitted to a service
	// that does not use the queue.
	ErrNotTaskManaged = fmt.Errorf("%w: service is not task-managed", domain.ErrValidation)

	// ErrServiceMismatch is returned when an update carries metadata of a
	// different service than the one that owns the job.
	ErrServiceMismatch = fmt.Errorf("%w: metadata belongs to another service", domain.ErrValidation)

	// ErrUpdateContention is returned when a status update lost every
	// compare-and-swap attempt to concurrent writers.
	ErrUpdateContention = errors.New("job was modified concurrently too many times")
)

// ErrMetadataCommitted is matched by errors of status updates whose revised
// service metadata was written while the job itself was left unchanged.
var ErrMetadataCommitted = errors.New("service metadata committed without the job update")

// PartialUpdateError is returned when revised metadata was written but the
// job write was then rejected or failed. It matches both
// ErrMetadataCommitted and the cause of the job failure.
type PartialUpdateError struct {
	ServiceID string
	JobID     string
	Err       error
}

// Error implements the error interface.
func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("status update of job %s for service %s: %v: %v",
		e.JobID, e.ServiceID, ErrMetadataCommitted, e.Err)
}

// Unwrap yields ErrMetadataCommitted and the job failure.
func (e *PartialUpdateError) Unwrap() []error {
	return []error{ErrMetadataCommitted, e.Err}
}
