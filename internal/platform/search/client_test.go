package search_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/platform/logger"
	"github.com/phrazzld/taskq/internal/platform/search"
	"github.com/phrazzld/taskq/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(t *testing.T, timeout time.Duration) (*search.Client, *httpmock.MockTransport) {
	t.Helper()

	log, _ := logger.NewTestLogger(t)
	client := search.NewClient(config.SearchConfig{
		URL:     "http://search.test/",
		Index:   "services",
		Timeout: timeout,
	}, log)

	transport := httpmock.NewMockTransport()
	client.Client().SetTransport(transport)
	return client, transport
}

func testService() *domain.ServiceMetadata {
	return &domain.ServiceMetadata{
		ServiceID:     "S1",
		Name:          "geocoder",
		IsTaskManaged: true,
		ResourceMetadata: domain.ResourceMetadata{
			Name:    "Geocoder",
			Version: "1.0",
		},
	}
}

func TestIndexService(t *testing.T) {
	client, transport := newMockedClient(t, time.Second)

	var body map[string]any
	transport.RegisterResponder(http.MethodPut, "http://search.test/services/_doc/S1",
		func(req *http.Request) (*http.Response, error) {
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusCreated, `{"result":"created"}`), nil
		})

	require.NoError(t, client.IndexService(context.Background(), testService()))
	assert.Equal(t, "S1", body["service_id"])
	assert.Equal(t, "geocoder", body["name"])
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestUpdateServiceSendsPartialDocument(t *testing.T) {
	client, transport := newMockedClient(t, time.Second)

	var body map[string]any
	transport.RegisterResponder(http.MethodPost, "http://search.test/services/_update/S1",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"result":"updated"}`), nil
		})

	require.NoError(t, client.UpdateService(context.Background(), testService()))
	require.Contains(t, body, "doc")
	assert.Equal(t, true, body["doc_as_upsert"])
	doc := body["doc"].(map[string]any)
	assert.Equal(t, "S1", doc["service_id"])
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantIs    error
		wantText  string
	}{
		{
			name:      "server_error",
			responder: httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"error":{"type":"cluster_block_exception","reason":"blocked"},"status":503}`),
			wantIs:    store.ErrUnavailable,
			wantText:  "cluster_block_exception",
		},
		{
			name:      "throttled",
			responder: httpmock.NewStringResponder(http.StatusTooManyRequests, ``),
			wantIs:    store.ErrUnavailable,
		},
		{
			name:      "mapping_rejected",
			responder: httpmock.NewStringResponder(http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception","reason":"bad field"},"status":400}`),
			wantIs:    search.ErrDocumentRejected,
			wantText:  "mapper_parsing_exception: bad field",
		},
		{
			name:      "missing_index",
			responder: httpmock.NewStringResponder(http.StatusNotFound, `not json`),
			wantIs:    search.ErrDocumentRejected,
			wantText:  "Not Found",
		},
		{
			name:      "transport_error",
			responder: httpmock.NewErrorResponder(errors.New("dial tcp: connection refused")),
			wantIs:    store.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newMockedClient(t, time.Second)
			transport.RegisterResponder(http.MethodPut, "http://search.test/services/_doc/S1", tt.responder)

			err := client.IndexService(context.Background(), testService())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	client, transport := newMockedClient(t, 50*time.Millisecond)
	transport.RegisterResponder(http.MethodPost, "http://search.test/services/_update/S1",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	start := time.Now()
	err := client.UpdateService(context.Background(), testService())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPing(t *testing.T) {
	client, transport := newMockedClient(t, time.Second)
	transport.RegisterResponder(http.MethodGet, "http://search.test/",
		httpmock.NewStringResponder(http.StatusOK, `{"tagline":"You Know, for Search"}`))

	assert.NoError(t, client.Ping(context.Background()))
}
