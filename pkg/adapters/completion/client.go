package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/quarry/pkg/ports"
)

// DefaultTimeout bounds a completion round trip.
const DefaultTimeout = 30 * time.Second

// ErrEmptyMessage is returned for blank input; the service rejects it anyway.
var ErrEmptyMessage = errors.New("message is required")

// Client implements ports.Completer for an endpoint taking {message} and
// answering {message, usage}.
type Client struct {
	url  string
	http *http.Client
}

// New creates a completion client. A zero timeout uses DefaultTimeout.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type request struct {
	Message string `json:"message"`
}

// Complete sends message and decodes the reply.
func (c *Client) Complete(ctx context.Context, message string) (ports.Completion, error) {
	if message == "" {
		return ports.Completion{}, ErrEmptyMessage
	}
	body, err := json.Marshal(request{Message: message})
	if err != nil {
		return ports.Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ports.Completion{}, fmt.Errorf("completion API error: %d", resp.StatusCode)
	}

	var out ports.Completion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.Completion{}, fmt.Errorf("failed to decode completion: %w", err)
	}
	return out, nil
}
