package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds every daemon call. The scheduler never cancels an
// in-flight poll, so the client's own timeout is the only bound.
const DefaultTimeout = 2 * time.Second

// HTTPClient talks to a profiling daemon over its REST surface.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPClientOption configures the client.
type HTTPClientOption func(*HTTPClient)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// NewHTTPClient creates a daemon client for the given base URL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadOnDemandConfig fetches pending on-demand config text. A 204 or an
// empty body means nothing is pending.
func (c *HTTPClient) ReadOnDemandConfig(ctx context.Context, events, activities bool) (string, error) {
	q := url.Values{}
	q.Set("events", strconv.FormatBool(events))
	q.Set("activities", strconv.FormatBool(activities))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/on-demand/config?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building on-demand request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("polling daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading daemon response: %w", err)
	}
	return string(body), nil
}

// GPUContextCount fetches the daemon's context count for a device.
func (c *HTTPClient) GPUContextCount(ctx context.Context, device uint32) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/gpus/%d/contexts", c.baseURL, device), nil)
	if err != nil {
		return 0, fmt.Errorf("building context-count request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("querying daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding context count: %w", err)
	}
	return out.Count, nil
}
