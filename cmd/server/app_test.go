package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/platform/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{
			Backend:      config.BackendMemory,
			QueryTimeout: time.Second,
			MaxOpenConns: 1,
		},
		Identifier: config.IdentifierConfig{Host: "uuid.test", Path: "/uuids", Timeout: time.Second},
		Search:     config.SearchConfig{Backend: config.BackendMemory, Index: "services", Timeout: time.Second},
		Queue:      config.QueueConfig{LeaseTTL: time.Minute, MaxUpdateAttempts: 3},
	}
}

// newTestApp builds a memory-backed application whose identifier service
// is served by httpmock.
func newTestApp(t *testing.T) (*application, *httpmock.MockTransport) {
	t.Helper()

	log, _ := logger.NewTestLogger(t)
	app, err := newApplication(context.Background(), testConfig(), log)
	require.NoError(t, err)

	var issued atomic.Int64
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "http://uuid.test/uuids",
		func(*http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"data": []string{fmt.Sprintf("id-%d", issued.Add(1))},
			})
		})
	app.issuer.Client().SetTransport(transport)

	return app, transport
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestNewApplicationRejectsUnknownBackends(t *testing.T) {
	log, _ := logger.NewTestLogger(t)

	t.Run("database", func(t *testing.T) {
		cfg := testConfig()
		cfg.Database.Backend = "cassandra"
		_, err := newApplication(context.Background(), cfg, log)
		assert.ErrorContains(t, err, "unsupported database backend")
	})

	t.Run("search", func(t *testing.T) {
		cfg := testConfig()
		cfg.Search.Backend = "solr"
		_, err := newApplication(context.Background(), cfg, log)
		assert.ErrorContains(t, err, "unsupported search backend")
	})
}

func TestApplicationServesQueueProtocol(t *testing.T) {
	app, transport := newTestApp(t)
	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/services", map[string]any{
		"name":            "thumbnailer",
		"is_task_managed": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var registered struct {
		ServiceID string `json:"service_id"`
	}
	require.NoError(t, json.Unmarshal(body, &registered))
	assert.Equal(t, "id-1", registered.ServiceID)

	resp, body = doJSON(t, srv, http.MethodPost, "/api/services/id-1/jobs", map[string]any{
		"payload": map[string]string{"image": "cat.png"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, srv, http.MethodGet, "/api/services/id-1/jobs/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var assignment struct {
		JobID      string `json:"job_id"`
		LeaseToken string `json:"lease_token"`
	}
	require.NoError(t, json.Unmarshal(body, &assignment))
	require.NotEmpty(t, assignment.LeaseToken)

	resp, body = doJSON(t, srv, http.MethodPost,
		"/api/services/id-1/jobs/"+assignment.JobID+"/status", map[string]any{
			"status":           "Success",
			"percent_complete": 100,
			"lease_token":      assignment.LeaseToken,
		})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/services/id-1/jobs/next", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/services/id-1/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"pending":0,"leased":0,"running":0,"total_historical":1}`, string(body))

	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestApplicationFallsBackToLocalIdentifiers(t *testing.T) {
	app, transport := newTestApp(t)
	transport.Reset()
	transport.RegisterResponder(http.MethodPost, "http://uuid.test/uuids",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/services", map[string]any{"name": "resizer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var registered struct {
		ServiceID string `json:"service_id"`
	}
	require.NoError(t, json.Unmarshal(body, &registered))
	assert.NotEmpty(t, registered.ServiceID)

	_, metricsBody := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Contains(t, string(metricsBody), `taskq_identifiers_generated_total{source="locally_generated"} 1`)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)

	resp, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, body = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestHealthReportsUnreachableSearchIndex(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	cfg := testConfig()
	cfg.Search.Backend = config.BackendElasticsearch
	cfg.Search.URL = "http://search.test"

	app, err := newApplication(context.Background(), cfg, log)
	require.NoError(t, err)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(srv.Close)

	client, ok := app.index.(*search.Client)
	require.True(t, ok)

	var checked atomic.Bool
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(func(*http.Request) (*http.Response, error) {
		checked.Store(true)
		return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
	})
	client.Client().SetTransport(transport)

	resp, _ := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, checked.Load())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, _ := newTestApp(t)
	app.config.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
