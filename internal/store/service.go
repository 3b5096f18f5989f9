package store

import (
	"context"

	"github.com/phrazzld/taskq/internal/domain"
)

// ServiceStore defines the interface for the authoritative copy of
// service registrations.
// Version: 1.0
type ServiceStore interface {
	// UpsertService inserts or replaces the service and returns its ID.
	// The service must carry a ServiceID.
	UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error)

	// UpdateService saves changes to an existing service.
	// Returns ErrServiceNotFound if the service does not exist.
	UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error

	// GetService retrieves a service by ID.
	// Returns ErrServiceNotFound if the service does not exist.
	GetService(ctx context.Context, serviceID string) (*domain.ServiceMetadata, error)
}
