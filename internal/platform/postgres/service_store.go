package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/store"
)

// PostgresServiceStore implements the store.ServiceStore interface.
// The full metadata is kept as a JSONB document next to the columns the
// queue needs.
type PostgresServiceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresServiceStore creates a new PostgreSQL implementation of the ServiceStore interface.
func NewPostgresServiceStore(db store.DBTX, logger *slog.Logger) *PostgresServiceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresServiceStore{
		db:     db,
		logger: logger.With(slog.String("component", "service_store")),
	}
}

var _ store.ServiceStore = (*PostgresServiceStore)(nil)

// UpsertService implements store.ServiceStore.UpsertService.
// An existing row keeps its created_at.
func (s *PostgresServiceStore) UpsertService(ctx context.Context, svc *domain.ServiceMetadata) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if svc.ServiceID == "" {
		return "", fmt.Errorf("%w: service id is required", store.ErrInvalidEntity)
	}

	doc, err := json.Marshal(svc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO services (service_id, name, is_task_managed, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (service_id) DO UPDATE
		SET name = EXCLUDED.name,
			is_task_managed = EXCLUDED.is_task_managed,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
		RETURNING service_id
	`

	var id string
	err = s.db.QueryRowContext(
		ctx,
		query,
		svc.ServiceID,
		svc.Name,
		svc.IsTaskManaged,
		doc,
		svc.CreatedAt,
		svc.UpdatedAt,
	).Scan(&id)
	if err != nil {
		log.Error("failed to upsert service",
			slog.String("error", err.Error()),
			slog.String("service_id", svc.ServiceID))
		return "", MapError(err)
	}

	log.Debug("service upserted", slog.String("service_id", id))
	return id, nil
}

// UpdateService implements store.ServiceStore.UpdateService.
// Returns store.ErrServiceNotFound if the service does not exist.
func (s *PostgresServiceStore) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	doc, err := json.Marshal(svc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET name = $2, is_task_managed = $3, document = $4, updated_at = $5
		WHERE service_id = $1
	`,
		svc.ServiceID,
		svc.Name,
		svc.IsTaskManaged,
		doc,
		svc.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update service",
			slog.String("error", err.Error()),
			slog.String("service_id", svc.ServiceID))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrServiceNotFound); err != nil {
		if errors.Is(err, store.ErrServiceNotFound) {
			log.Debug("service not found for update", slog.String("service_id", svc.ServiceID))
		}
		return err
	}
	return nil
}

// GetService implements store.ServiceStore.GetService.
// Returns store.ErrServiceNotFound if the service does not exist.
func (s *PostgresServiceStore) GetService(ctx context.Context, serviceID string) (*domain.ServiceMetadata, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		doc []byte
		svc domain.ServiceMetadata
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document, created_at, updated_at FROM services WHERE service_id = $1`,
		serviceID,
	).Scan(&doc, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrServiceNotFound
		}
		log.Error("failed to get service",
			slog.String("error", err.Error()),
			slog.String("service_id", serviceID))
		return nil, MapError(err)
	}

	createdAt, updatedAt := svc.CreatedAt.UTC(), svc.UpdatedAt.UTC()
	if err := json.Unmarshal(doc, &svc); err != nil {
		return nil, fmt.Errorf("failed to decode service document: %w", err)
	}
	svc.ServiceID = serviceID
	svc.CreatedAt = createdAt
	svc.UpdatedAt = updatedAt
	return &svc, nil
}
