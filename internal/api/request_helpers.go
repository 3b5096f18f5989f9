package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/platform/logger"
)

// Path parameter names used by the routes.
const (
	paramServiceID = "serviceID"
	paramJobID     = "jobID"
)

// getPathParam returns the named chi path parameter. An empty value is a
// validation error.
func getPathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	return value, nil
}

// decodeAndValidate reads the JSON body into v and validates it. It writes a
// 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any, log *slog.Logger) bool {
	if log == nil {
		log = logger.FromContext(r.Context())
	}

	if err := shared.DecodeJSON(r, v); err != nil {
		log.DebugContext(r.Context(), "invalid request body", "error", err)
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "")
		return false
	}

	if err := shared.ValidateRequest(v); err != nil {
		log.DebugContext(r.Context(), "request validation failed", "error", err)
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return false
	}
	return true
}
