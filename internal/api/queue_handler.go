package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/service"
)

// Audit action names logged with failed worker requests.
const (
	ActionGetServiceJob       = "errorGettingServiceJob"
	ActionUpdateServiceJob    = "failedToUpdateServiceJob"
	ActionRetrieveQueueStats  = "failedToRetrieveServiceQueueMetadata"
	ActionSubmitServiceJob    = "failedToSubmitServiceJob"
	ActionRegisterService     = "failedToRegisterService"
	ActionUpdateService       = "failedToUpdateService"
	ActionRetrieveServiceInfo = "failedToRetrieveService"
)

// QueueHandler serves the worker protocol and job submission.
type QueueHandler struct {
	queueService service.QueueService
	logger       *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueService service.QueueService, logger *slog.Logger) *QueueHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QueueHandler")
	}

	return &QueueHandler{
		queueService: queueService,
		logger:       logger.With(slog.String("component", "queue_handler")),
	}
}

// RequestNextJob handles GET /api/services/{serviceID}/jobs/next requests.
// It leases the next job of the service, or answers 204 when there is none.
func (h *QueueHandler) RequestNextJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	assignment, err := h.queueService.RequestNextJob(r.Context(), serviceID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to lease job",
			shared.WithAction(ActionGetServiceJob),
			shared.WithAttrs(slog.String("service_id", serviceID)))
		return
	}

	if assignment == nil {
		log.DebugContext(r.Context(), "no job available", slog.String("service_id", serviceID))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	log.DebugContext(r.Context(), "job assigned",
		slog.String("service_id", serviceID),
		slog.String("job_id", assignment.JobID))
	shared.RespondWithJSON(w, r, http.StatusOK, assignment)
}

// ReportStatus handles POST /api/services/{serviceID}/jobs/{jobID}/status requests.
func (h *QueueHandler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	jobID, err := getPathParam(r, paramJobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req StatusUpdateRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	update := req.toDomain()
	if err := h.queueService.ReportStatus(r.Context(), serviceID, jobID, update); err != nil {
		HandleAPIError(w, r, err, "Failed to update job",
			shared.WithAction(ActionUpdateServiceJob),
			shared.WithAttrs(
				slog.String("service_id", serviceID),
				slog.String("job_id", jobID),
				slog.String("status", req.Status)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatusUpdateResponse{
		JobID:  jobID,
		Status: update.Status,
	})
}

// GetQueueStats handles GET /api/services/{serviceID}/queue requests.
func (h *QueueHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	stats, err := h.queueService.GetQueueStats(r.Context(), serviceID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve queue",
			shared.WithAction(ActionRetrieveQueueStats),
			shared.WithAttrs(slog.String("service_id", serviceID)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// SubmitJob handles POST /api/services/{serviceID}/jobs requests.
func (h *QueueHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	serviceID, err := getPathParam(r, paramServiceID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitJobRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	job, err := h.queueService.SubmitJob(r.Context(), serviceID, req.Payload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit job",
			shared.WithAction(ActionSubmitServiceJob),
			shared.WithAttrs(slog.String("service_id", serviceID)))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, jobToResponse(job))
}
