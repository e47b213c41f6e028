package sampling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/ports"
)

// Defaults of the sampling payload.
const (
	DefaultURL      = "http://127.0.0.1:8000/api/get-samples/"
	DefaultCount    = 5
	DefaultTaskType = "regression"
	DefaultTimeout  = 30 * time.Second
)

// maxResponseBytes caps how much of a sampling response is read.
const maxResponseBytes = 8 << 20

// Client implements ports.Sampler against the get-samples HTTP endpoint.
type Client struct {
	url      string
	count    int
	taskType string
	applyLog bool
	http     *http.Client
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithURL overrides DefaultURL.
func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithCount sets how many samples are requested.
func WithCount(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.count = n
		}
	}
}

// WithTaskType sets the task type sent when the request carries none.
func WithTaskType(t string) Option {
	return func(c *Client) {
		if t != "" {
			c.taskType = t
		}
	}
}

// WithApplyLog sets the apply_log flag.
func WithApplyLog(enabled bool) Option {
	return func(c *Client) {
		c.applyLog = enabled
	}
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a sampling client.
func New(opts ...Option) *Client {
	c := &Client{
		url:      DefaultURL,
		count:    DefaultCount,
		taskType: DefaultTaskType,
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Samples []any `json:"samples"`
}

// Sample posts the request and returns the "samples" array of the reply.
// Missing request fields are filled with the client defaults.
func (c *Client) Sample(ctx context.Context, req ports.SampleRequest) ([]any, error) {
	if req.Count <= 0 {
		req.Count = c.count
	}
	if req.TaskType == "" {
		req.TaskType = c.taskType
	}
	if !req.ApplyLog {
		req.ApplyLog = c.applyLog
	}
	if req.UserConstraints == nil {
		req.UserConstraints = map[string]any{}
	}
	if req.FixedColumns == nil {
		req.FixedColumns = map[string]any{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sample request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sample request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sampling request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sampling response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sampling service returned %d", resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sampling response: %w", err)
	}
	c.logger.Debug("samples received", "count", len(out.Samples), "took", time.Since(started))
	return out.Samples, nil
}
