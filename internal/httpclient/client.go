// Package httpclient provides the JSON-over-HTTP plumbing shared by the
// GitHub and identity provider clients.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "heda-gitops-api/1.0"
)

// Client performs JSON requests against a REST API
type Client struct {
	client    *http.Client
	userAgent string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client with the specified timeout.
// If timeout is 0, uses DefaultTimeout.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes a single JSON call
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body is marshalled as JSON when non-nil
	Body any
	// Accepted lists the status codes treated as success. Empty means any 2xx.
	Accepted []int
}

// Do executes the request and decodes a JSON response into out when out is
// non-nil and the response has a body. It returns the response status code.
// Unaccepted status codes produce an *HTTPError carrying the upstream message.
func (c *Client) Do(ctx context.Context, req Request, out any) (int, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := readLimited(resp)
	if err != nil {
		return resp.StatusCode, err
	}

	if !accepted(resp.StatusCode, req.Accepted) {
		return resp.StatusCode, NewHTTPError(resp.StatusCode, req.URL, upstreamMessage(resp.Status, data))
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", req.URL, err)
		}
	}

	return resp.StatusCode, nil
}

func accepted(status int, allowed []int) bool {
	if len(allowed) == 0 {
		return status >= 200 && status < 300
	}
	return slices.Contains(allowed, status)
}

func readLimited(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	// Read one byte past the limit to detect oversized bodies without a Content-Length.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}
	return data, nil
}
