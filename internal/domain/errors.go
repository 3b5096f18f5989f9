// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status update would move a job
	// along an edge that is not part of the status lattice. It is terminal:
	// callers must not retry the same update.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyTerminal is returned when a job that already reached a terminal
	// status receives another update. It wraps ErrInvalidTransition.
	ErrAlreadyTerminal = fmt.Errorf("%w: job is already in a terminal status", ErrInvalidTransition)

	// ErrLeaseMismatch is returned when a status update names a lease token
	// that does not match the job's current lease.
	ErrLeaseMismatch = errors.New("lease token does not match the active lease")
)
