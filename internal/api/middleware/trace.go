// Package middleware contains HTTP middleware shared by the API handlers.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/platform/logger"
)

// CallerHeader carries the caller identity of a request.
const CallerHeader = "X-Username"

// TraceMiddleware adds a trace ID, the caller identity and a request scoped
// logger to the request context. It should run before any handler that logs.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			log := base.With(slog.String("trace_id", shared.GetTraceID(ctx)))

			if caller := strings.TrimSpace(r.Header.Get(CallerHeader)); caller != "" {
				ctx = shared.SetCaller(ctx, caller)
				log = log.With(slog.String("caller", caller))
			}
			ctx = logger.WithLogger(ctx, log)

			log.DebugContext(ctx, "request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
