package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Identifier IdentifierConfig `mapstructure:"identifier" validate:"required"`
	Search     SearchConfig     `mapstructure:"search"     validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Storage backends supported for the authoritative store and the search index.
const (
	BackendPostgres      = "postgres"
	BackendMemory        = "memory"
	BackendElasticsearch = "elasticsearch"
)

// DatabaseConfig configures the authoritative metadata store.
type DatabaseConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=postgres memory"`
	URL     string `mapstructure:"url"     validate:"required_if=Backend postgres,omitempty,url"`
	// QueryTimeout is applied to every store call so that an unreachable
	// database fails fast instead of hanging a worker request.
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"gte=1"`
	// AutoMigrate runs pending schema migrations at startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// IdentifierConfig configures the remote identifier issuing service.
type IdentifierConfig struct {
	Host    string        `mapstructure:"host"    validate:"required"`
	Path    string        `mapstructure:"path"    validate:"required,startswith=/"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SearchConfig configures the secondary search index.
type SearchConfig struct {
	Backend string        `mapstructure:"backend" validate:"required,oneof=elasticsearch memory"`
	URL     string        `mapstructure:"url"     validate:"required_if=Backend elasticsearch,omitempty,url"`
	Index   string        `mapstructure:"index"   validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// QueueConfig configures lease and status update behaviour of the task queue.
type QueueConfig struct {
	// LeaseTTL is how long a Leased job stays owned by a worker before it
	// becomes eligible for another lease.
	LeaseTTL time.Duration `mapstructure:"lease_ttl" validate:"gt=0"`
	// MaxUpdateAttempts bounds compare-and-swap retries when concurrent
	// status updates race on the same job.
	MaxUpdateAttempts int `mapstructure:"max_update_attempts" validate:"gte=1,lte=20"`
}
