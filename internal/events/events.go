package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskq/internal/domain"
)

// Operation names recorded on inconsistency events.
const (
	OperationUpsert = "upsert"
	OperationUpdate = "update"
)

// StoreSearchIndex names the store that missed a write.
const StoreSearchIndex = "search_index"

// InconsistencyEvent reports a service metadata write that is present in the
// authoritative store but missing from the search index.
type InconsistencyEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Operation   string `json:"operation"`
	ServiceID   string `json:"service_id"`
	FailedStore string `json:"failed_store"`
	Cause       string `json:"cause"`

	// Document is the metadata as written to the authoritative store, so a
	// reconciler can replay it against the index
	Document json.RawMessage `json:"document"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewInconsistencyEvent builds an event for svc after operation failed
// against the search index with cause.
func NewInconsistencyEvent(
	operation string,
	svc *domain.ServiceMetadata,
	cause error,
	now time.Time,
) (*InconsistencyEvent, error) {
	if svc == nil {
		return nil, fmt.Errorf("inconsistency event requires service metadata")
	}

	doc, err := json.Marshal(svc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode service document: %w", err)
	}

	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}

	return &InconsistencyEvent{
		ID:          uuid.New(),
		Operation:   operation,
		ServiceID:   svc.ServiceID,
		FailedStore: StoreSearchIndex,
		Cause:       causeText,
		Document:    doc,
		OccurredAt:  now.UTC(),
	}, nil
}

// UnmarshalDocument decodes the recorded service document.
func (e *InconsistencyEvent) UnmarshalDocument() (*domain.ServiceMetadata, error) {
	var svc domain.ServiceMetadata
	if err := json.Unmarshal(e.Document, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// EventHandler defines an interface for components that react to
// inconsistency events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *InconsistencyEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the coordinator to publish events without knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *InconsistencyEvent) error
}
