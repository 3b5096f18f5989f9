package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in memory.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// Every handler sees the event even if an earlier one fails; the first
// error encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *InconsistencyEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.WarnContext(ctx, "no handlers registered for inconsistency event",
			"event_id", event.ID,
			"service_id", event.ServiceID)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "handler failed to process inconsistency event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"service_id", event.ServiceID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// ReconciliationLogHandler records inconsistency events in the log so an
// operator or an external reconciler can replay them.
type ReconciliationLogHandler struct {
	logger *slog.Logger
}

// NewReconciliationLogHandler builds a handler writing to logger.
func NewReconciliationLogHandler(logger *slog.Logger) *ReconciliationLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationLogHandler{logger: logger.With("component", "reconciliation")}
}

// HandleEvent implements EventHandler.
func (h *ReconciliationLogHandler) HandleEvent(ctx context.Context, event *InconsistencyEvent) error {
	h.logger.ErrorContext(ctx, "service metadata requires reconciliation",
		"event_id", event.ID,
		"operation", event.Operation,
		"service_id", event.ServiceID,
		"failed_store", event.FailedStore,
		"cause", event.Cause,
		"occurred_at", event.OccurredAt)
	return nil
}
