package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskq/internal/config"
)

// loadAppConfig loads the application configuration from path, or from
// ./config.yaml and the environment when path is empty.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_backend", cfg.Database.Backend,
		"search_backend", cfg.Search.Backend)

	return cfg, nil
}
