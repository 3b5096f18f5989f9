package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/consistency"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/queue"
	"github.com/phrazzld/taskq/internal/service"
	"github.com/phrazzld/taskq/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Partial writes are checked first: the caller must learn that the
	// metadata store accepted the write.
	case errors.Is(err, consistency.ErrInconsistentWrite),
		errors.Is(err, queue.ErrMetadataCommitted):
		return http.StatusBadGateway

	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrLeaseMismatch),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, queue.ErrUpdateContention),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrServiceIDRequired),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, queue.ErrMetadataCommitted):
		return "Service metadata was saved but the job update was not applied"
	case errors.Is(err, consistency.ErrInconsistentWrite):
		return "Service metadata was saved but the search index is out of date"
	case errors.Is(err, store.ErrUnavailable):
		return "Store temporarily unavailable"

	case errors.Is(err, domain.ErrAlreadyTerminal):
		return "Job already reached a terminal status"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Status transition not allowed"
	case errors.Is(err, domain.ErrLeaseMismatch):
		return "Lease token does not match the active lease"
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, queue.ErrUpdateContention):
		return "Job was modified concurrently"
	case errors.Is(err, store.ErrJobExists):
		return "Job already exists"

	case errors.Is(err, store.ErrServiceNotFound):
		return "Service not found"
	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, queue.ErrNotTaskManaged):
		return "Service is not task-managed"
	case errors.Is(err, queue.ErrServiceMismatch):
		return "Service metadata belongs to another service"
	case errors.Is(err, service.ErrServiceIDRequired):
		return "Service ID is required"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err. defaultMsg replaces the
// generic message of unexpected errors.
func HandleAPIError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	defaultMsg string,
	opts ...shared.ResponseOption,
) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns a request validation failure into a message
// naming the offending field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "Validation error"
	}

	fe := validationErrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid URL"
	case "gte", "lte":
		return "out of range"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
