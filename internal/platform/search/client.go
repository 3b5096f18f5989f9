package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phrazzld/taskq/internal/config"
	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/store"
)

// ErrDocumentRejected is returned when the index refuses a document with a
// client error. Retrying the same request will not succeed.
var ErrDocumentRejected = errors.New("search index rejected document")

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

type updateRequest struct {
	Doc         *domain.ServiceMetadata `json:"doc"`
	DocAsUpsert bool                    `json:"doc_as_upsert"`
}

// Client is a search index adapter for service metadata.
type Client struct {
	client  *resty.Client
	index   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a client for cfg.URL and cfg.Index.
func NewClient(cfg config.SearchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		client:  client,
		index:   cfg.Index,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "search_index", "index", cfg.Index),
	}
}

// Client exposes the underlying HTTP client so tests can swap its transport.
func (c *Client) Client() *resty.Client {
	return c.client
}

// IndexService creates or replaces the document of svc.
func (c *Client) IndexService(ctx context.Context, svc *domain.ServiceMetadata) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"index": c.index, "id": svc.ServiceID}).
		SetBody(svc).
		Put("/{index}/_doc/{id}")
	return c.check("index", svc.ServiceID, resp, err)
}

// UpdateService merges svc into its document, creating it when missing.
func (c *Client) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"index": c.index, "id": svc.ServiceID}).
		SetBody(updateRequest{Doc: svc, DocAsUpsert: true}).
		Post("/{index}/_update/{id}")
	return c.check("update", svc.ServiceID, resp, err)
}

// Ping checks that the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Get("/")
	return c.check("ping", "", resp, err)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) check(operation, serviceID string, resp *resty.Response, err error) error {
	if err != nil {
		return store.NewStoreError("search_document", operation, "request failed",
			fmt.Errorf("%w: %v", store.ErrUnavailable, err))
	}
	if !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	var body errorResponse
	reason := http.StatusText(status)
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Error.Type != "" {
		reason = body.Error.Type + ": " + body.Error.Reason
	}

	c.logger.Warn("search index returned an error",
		"operation", operation,
		"service_id", serviceID,
		"status", status,
		"reason", reason)

	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return store.NewStoreError("search_document", operation, reason, store.ErrUnavailable)
	}
	return store.NewStoreError("search_document", operation, reason, ErrDocumentRejected)
}
