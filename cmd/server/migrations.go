package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/platform/postgres"
)

// handleMigrations runs a goose command against the configured database.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations require the %s backend, configured backend is %s",
			config.BackendPostgres, cfg.Database.Backend)
	}

	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
	}()

	logger.Info("Executing migrations", "command", command)
	if err := postgres.RunMigration(ctx, db, command, logger); err != nil {
		return err
	}
	logger.Info("Migrations completed", "command", command)
	return nil
}
