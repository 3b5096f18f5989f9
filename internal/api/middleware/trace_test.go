package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskq/internal/api/middleware"
	"github.com/phrazzld/taskq/internal/api/shared"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	log, buf := logger.NewTestLogger(t)

	var traceID, caller string
	handler := middleware.TraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		caller = shared.GetCaller(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/services/S1/jobs/next", nil)
	req.Header.Set(middleware.CallerHeader, " worker-7 ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, traceID, shared.TraceIDLength)
	assert.Equal(t, "worker-7", caller)

	started := logger.FindEntries(t, buf, "request started")
	require.Len(t, started, 1)
	assert.Equal(t, "/api/services/S1/jobs/next", started[0]["path"])

	inside := logger.FindEntries(t, buf, "inside handler")
	require.Len(t, inside, 1)
	assert.Equal(t, traceID, inside[0]["trace_id"])
	assert.Equal(t, "worker-7", inside[0]["caller"])
}

func TestTraceMiddlewareWithoutCaller(t *testing.T) {
	var caller string
	handler := middleware.TraceMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = shared.GetCaller(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, caller)
}
