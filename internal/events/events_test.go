package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInconsistencyEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	svc := &domain.ServiceMetadata{
		ServiceID:     "S1",
		Name:          "geocoder",
		IsTaskManaged: true,
		ResourceMetadata: domain.ResourceMetadata{
			Name:    "Geocoder",
			Version: "2",
		},
	}

	event, err := NewInconsistencyEvent(OperationUpdate, svc, errors.New("index timeout"), now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, OperationUpdate, event.Operation)
	assert.Equal(t, "S1", event.ServiceID)
	assert.Equal(t, StoreSearchIndex, event.FailedStore)
	assert.Equal(t, "index timeout", event.Cause)
	assert.Equal(t, now.UTC(), event.OccurredAt)

	decoded, err := event.UnmarshalDocument()
	require.NoError(t, err)
	assert.Equal(t, svc.ServiceID, decoded.ServiceID)
	assert.Equal(t, svc.ResourceMetadata.Version, decoded.ResourceMetadata.Version)
	assert.True(t, decoded.IsTaskManaged)
}

func TestNewInconsistencyEventRequiresMetadata(t *testing.T) {
	_, err := NewInconsistencyEvent(OperationUpsert, nil, nil, time.Now())
	assert.Error(t, err)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *InconsistencyEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *InconsistencyEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}
