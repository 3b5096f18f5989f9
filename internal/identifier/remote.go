package identifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/phrazzld/taskq/internal/config"
)

type issueResponse struct {
	Data []string `json:"data"`
}

// RemoteIssuer requests identifiers from the uuid generation service.
type RemoteIssuer struct {
	client  *resty.Client
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRemoteIssuer builds an issuer for cfg.Host and cfg.Path. A host
// without a scheme is reached over plain http.
func NewRemoteIssuer(cfg config.IdentifierConfig, logger *slog.Logger) *RemoteIssuer {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.Host
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &RemoteIssuer{
		client:  client,
		path:    cfg.Path,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "identifier_remote"),
	}
}

// Client exposes the underlying HTTP client so tests can swap its transport.
func (r *RemoteIssuer) Client() *resty.Client {
	return r.client
}

// Issue posts count to the service and returns the ids in its data array.
func (r *RemoteIssuer) Issue(ctx context.Context, count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"count": strconv.Itoa(count)}).
		Post(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssuerUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrIssuerUnavailable, resp.StatusCode())
	}

	var body issueResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrIssuerUnavailable, err)
	}
	if len(body.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	if len(body.Data) > count {
		r.logger.WarnContext(ctx, "identifier service returned more ids than requested",
			"requested", count,
			"returned", len(body.Data))
		body.Data = body.Data[:count]
	}

	return body.Data, nil
}
