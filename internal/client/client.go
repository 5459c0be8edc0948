// Package client talks to a running daemon's control surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/firefly-engineering/keypool/internal/control"
	"github.com/firefly-engineering/keypool/internal/health"
)

// DefaultTimeout bounds each control call.
const DefaultTimeout = 10 * time.Second

// Client calls the control endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the control surface at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the control surface URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UpdateKeys replaces the daemon's credential list.
func (c *Client) UpdateKeys(ctx context.Context, keys []string) (*control.UpdateKeysResponse, error) {
	body, err := json.Marshal(control.UpdateKeysRequest{Keys: keys})
	if err != nil {
		return nil, err
	}
	var resp control.UpdateKeysResponse
	if err := c.do(ctx, http.MethodPost, "/update-keys", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches pool status.
func (c *Client) Status(ctx context.Context) (*control.StatusResponse, error) {
	var resp control.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the health report.
func (c *Client) Health(ctx context.Context) (*health.Report, error) {
	var resp health.Report
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// APIError is a non-2xx answer from the control surface.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("control API returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er control.ErrorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Message = er.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
