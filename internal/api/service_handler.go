package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/service"
)

// ServiceHandler serves service registration and lookup.
type ServiceHandler struct {
	queueService service.QueueService
	logger       *slog.Logger
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(queueService service.QueueService, logger *slog.Logger) *ServiceHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ServiceHandler")
	}

	return &ServiceHandler{
		queueService: queueService,
		logger:       logger.With(slog.String("component", "service_handler")),
	}
}

// RegisterService handles POST /api/services requests.
func (h *ServiceHandler) RegisterService(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req ServiceRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	serviceID, err := h.queueService.RegisterService(r.Context(), req.toDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to register service",
			shared.WithAction(ActionRegisterService),
			shared.WithAttrs(slog.String("name", req.Name)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ServiceIDResponse{ServiceID: serviceID})
}

// UpdateService handles PUT /api/services/{serviceID} requests. The path
// identifies the service; a service_id in the body is ignored.
func (h *ServiceHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ServiceRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}
	req.ServiceID = serviceID

	if err := h.queueService.UpdateService(r.Context(), req.toDomain()); err != nil {
		HandleAPIError(w, r, err, "Failed to update service",
			shared.WithAction(ActionUpdateService),
			shared.WithAttrs(slog.String("service_id", serviceID)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ServiceIDResponse{ServiceID: serviceID})
}

// GetService handles GET /api/services/{serviceID} requests.
func (h *ServiceHandler) GetService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	details, err := h.queueService.GetService(r.Context(), serviceID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve service",
			shared.WithAction(ActionRetrieveServiceInfo),
			shared.WithAttrs(slog.String("service_id", serviceID)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, details)
}
