package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskq/internal/api"
	apiMiddleware "github.com/phrazzld/taskq/internal/api/middleware"
	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/redact"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	queueHandler := api.NewQueueHandler(app.queueService, app.logger)
	serviceHandler := api.NewServiceHandler(app.queueService, app.logger)

	r.Route("/api", func(r chi.Router) {
		api.Routes(r, queueHandler, serviceHandler)
	})

	r.Get("/health", app.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return r
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), app.config.Database.QueryTimeout)
	defer cancel()

	if err := app.checkHealth(ctx); err != nil {
		app.logger.WarnContext(ctx, "health check failed", redact.Attr(err))
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Unavailable")
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("Failed to write health check response", "error", err)
	}
}
