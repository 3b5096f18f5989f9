package consistency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/events"
	"github.com/phrazzld/taskq/internal/identifier"
	"github.com/phrazzld/taskq/internal/metrics"
	"github.com/phrazzld/taskq/internal/store"
)

// SearchIndex is the replica of service metadata used for discovery.
type SearchIndex interface {
	// IndexService creates or replaces the document of svc.
	IndexService(ctx context.Context, svc *domain.ServiceMetadata) error
	// UpdateService merges svc into its existing document.
	UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error
}

// IDSource assigns service identifiers.
type IDSource interface {
	NewID(ctx context.Context) (identifier.ID, error)
}

// Coordinator performs dual writes of service metadata.
type Coordinator struct {
	services store.ServiceStore
	index    SearchIndex
	ids      IDSource
	emitter  events.EventEmitter
	metrics  *metrics.Metrics
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewCoordinator wires a coordinator. m and clock may be nil.
func NewCoordinator(
	services store.ServiceStore,
	index SearchIndex,
	ids IDSource,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) (*Coordinator, error) {
	if services == nil {
		return nil, errors.New("services store cannot be nil")
	}
	if index == nil {
		return nil, errors.New("search index cannot be nil")
	}
	if ids == nil {
		return nil, errors.New("identifier source cannot be nil")
	}
	if emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		services: services,
		index:    index,
		ids:      ids,
		emitter:  emitter,
		metrics:  m,
		clock:    clock,
		logger:   logger.With("component", "consistency_coordinator"),
	}, nil
}

// UpsertService stores svc and returns its id, assigning one when svc has
// none. The argument is not modified.
//
// When the index write fails after the store write succeeded the returned
// id is empty and the error wraps ErrInconsistentWrite; the persisted id is
// available on the *WriteError.
func (c *Coordinator) UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error) {
	if svc == nil {
		return "", fmt.Errorf("%w: service metadata is required", domain.ErrValidation)
	}
	if err := svc.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	doc := *svc
	if doc.ServiceID == "" {
		id, err := c.ids.NewID(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to assign service id: %w", err)
		}
		doc.ServiceID = id.Value
		c.logger.DebugContext(ctx, "assigned service id",
			"service_id", doc.ServiceID,
			"id_source", id.Source)
	}

	now := c.clock.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	assigned, err := c.services.UpsertService(ctx, &doc)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to write service to metadata store",
			"error", err,
			"service_id", doc.ServiceID)
		return "", &WriteError{
			Operation: events.OperationUpsert,
			ServiceID: doc.ServiceID,
			Stage:     StageAuthoritative,
			Err:       err,
		}
	}
	doc.ServiceID = assigned

	if err := c.index.IndexService(ctx, &doc); err != nil {
		return "", c.inconsistent(ctx, events.OperationUpsert, &doc, err)
	}

	c.logger.InfoContext(ctx, "service registered", "service_id", assigned)
	return assigned, nil
}

// UpdateService writes revised metadata of an existing service.
func (c *Coordinator) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	if svc == nil {
		return fmt.Errorf("%w: service metadata is required", domain.ErrValidation)
	}
	if svc.ServiceID == "" {
		return fmt.Errorf("%w: service id is required for update", domain.ErrValidation)
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	doc := *svc
	doc.UpdatedAt = c.clock.Now().UTC()

	if err := c.services.UpdateService(ctx, &doc); err != nil {
		c.logger.ErrorContext(ctx, "failed to update service in metadata store",
			"error", err,
			"service_id", doc.ServiceID)
		return &WriteError{
			Operation: events.OperationUpdate,
			ServiceID: doc.ServiceID,
			Stage:     StageAuthoritative,
			Err:       err,
		}
	}

	if err := c.index.UpdateService(ctx, &doc); err != nil {
		return c.inconsistent(ctx, events.OperationUpdate, &doc, err)
	}

	c.logger.DebugContext(ctx, "service updated", "service_id", doc.ServiceID)
	return nil
}

func (c *Coordinator) inconsistent(
	ctx context.Context,
	operation string,
	doc *domain.ServiceMetadata,
	cause error,
) error {
	c.metrics.InconsistentWrite(operation)
	c.logger.ErrorContext(ctx, "search index write failed after metadata store write",
		"error", cause,
		"operation", operation,
		"service_id", doc.ServiceID)

	event, err := events.NewInconsistencyEvent(operation, doc, cause, c.clock.Now())
	if err == nil {
		err = c.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish inconsistency event",
			"error", err,
			"service_id", doc.ServiceID)
	}

	return &WriteError{
		Operation: operation,
		ServiceID: doc.ServiceID,
		Stage:     StageSearchIndex,
		Err:       cause,
	}
}
