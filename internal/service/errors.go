package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrServiceIDRequired is returned when an operation is called without a
// service id.
var ErrServiceIDRequired = errors.New("service id is required")

// QueueServiceError reports a failed queue service operation together with
// the identifiers it concerned.
type QueueServiceError struct {
	// Operation is the failing operation (e.g. "request_next_job", "report_status").
	Operation string
	ServiceID string
	JobID     string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for QueueServiceError.
func (e *QueueServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "queue service %s failed", e.Operation)
	if e.ServiceID != "" {
		fmt.Fprintf(&b, " for service %s", e.ServiceID)
	}
	if e.JobID != "" {
		fmt.Fprintf(&b, " job %s", e.JobID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *QueueServiceError) Unwrap() error {
	return e.Err
}

// NewQueueServiceError wraps err with the context of operation. It returns
// nil when err is nil and does not wrap an error twice.
func NewQueueServiceError(operation, serviceID, jobID string, err error) error {
	if err == nil {
		return nil
	}

	var existing *QueueServiceError
	if errors.As(err, &existing) {
		return err
	}

	return &QueueServiceError{
		Operation: operation,
		ServiceID: serviceID,
		JobID:     jobID,
		Err:       err,
	}
}
