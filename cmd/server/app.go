package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/consistency"
	"github.com/phrazzld/taskq/internal/events"
	"github.com/phrazzld/taskq/internal/identifier"
	"github.com/phrazzld/taskq/internal/metrics"
	"github.com/phrazzld/taskq/internal/platform/memory"
	"github.com/phrazzld/taskq/internal/platform/postgres"
	"github.com/phrazzld/taskq/internal/platform/search"
	"github.com/phrazzld/taskq/internal/queue"
	"github.com/phrazzld/taskq/internal/service"
	"github.com/phrazzld/taskq/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// pinger is implemented by backends that can report their reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// application holds the dependencies shared by the server and releases
// them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	clock  clockwork.Clock

	// db is nil with the memory backend.
	db       *sql.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	jobs     store.JobStore
	services store.ServiceStore
	index    consistency.SearchIndex
	issuer   *identifier.RemoteIssuer
	ids      *identifier.Generator
	emitter  *events.InMemoryEventEmitter

	coordinator  *consistency.Coordinator
	queue        *queue.Manager
	queueService service.QueueService
}

// newApplication creates a new application instance with all dependencies
// initialized from cfg. It connects to the database when the postgres
// backend is configured.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	if err := app.setupStores(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	if err := app.setupServices(); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func (app *application) setupStores(ctx context.Context) error {
	cfg := app.config

	switch cfg.Database.Backend {
	case config.BackendPostgres:
		db, err := setupAppDatabase(ctx, cfg.Database, app.logger)
		if err != nil {
			return err
		}
		app.db = db

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db, app.logger); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
		}

		app.jobs = postgres.NewPostgresJobStore(db, app.logger)
		app.services = postgres.NewPostgresServiceStore(db, app.logger)
	case config.BackendMemory:
		mem := memory.NewStore()
		app.jobs = mem
		app.services = mem
		app.logger.Warn("using in-memory metadata store, state is lost on restart")
	default:
		return fmt.Errorf("unsupported database backend: %s", cfg.Database.Backend)
	}

	app.jobs = store.NewTimeoutJobStore(app.jobs, cfg.Database.QueryTimeout)
	app.services = store.NewTimeoutServiceStore(app.services, cfg.Database.QueryTimeout)

	switch cfg.Search.Backend {
	case config.BackendElasticsearch:
		app.index = search.NewClient(cfg.Search, app.logger)
	case config.BackendMemory:
		app.index = memory.NewSearchIndex()
		app.logger.Warn("using in-memory search index")
	default:
		return fmt.Errorf("unsupported search backend: %s", cfg.Search.Backend)
	}

	return nil
}

func (app *application) setupServices() error {
	var err error

	app.issuer = identifier.NewRemoteIssuer(app.config.Identifier, app.logger)
	app.ids = identifier.NewGenerator(
		app.issuer,
		identifier.NewLocalGenerator(app.clock),
		app.logger,
		app.metrics,
	)

	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	app.emitter.RegisterHandler(events.NewReconciliationLogHandler(app.logger))

	app.coordinator, err = consistency.NewCoordinator(
		app.services,
		app.index,
		app.ids,
		app.emitter,
		app.metrics,
		app.clock,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create consistency coordinator: %w", err)
	}

	app.queue, err = queue.NewManager(
		app.jobs,
		app.services,
		app.ids,
		app.coordinator,
		app.config.Queue,
		app.clock,
		app.metrics,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}

	app.queueService, err = service.NewQueueService(app.queue, app.coordinator, app.services, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create queue service: %w", err)
	}

	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// checkHealth pings the backends that support it.
func (app *application) checkHealth(ctx context.Context) error {
	if app.db != nil {
		if err := app.db.PingContext(ctx); err != nil {
			return fmt.Errorf("metadata store: %w", postgres.MapError(err))
		}
	}
	if p, ok := app.index.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("search index: %w", err)
		}
	}
	return nil
}

// cleanup releases application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
