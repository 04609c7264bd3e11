// Package relay is a client for the Relay cross-chain swap API.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	MainnetBaseURL = "https://api.relay.link"
	TestnetBaseURL = "https://api.testnets.relay.link"
)

// Client talks to the Relay API
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        *logrus.Logger
	retryMax      int
	checkInterval time.Duration
	checkTimeout  time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the retrying transport
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryMax sets how many times failed requests are retried
func WithRetryMax(n int) Option {
	return func(cl *Client) { cl.retryMax = n }
}

// WithLogger sets the client's logger
func WithLogger(l *logrus.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithCheckPolling sets how step completion is polled during execution
func WithCheckPolling(interval, timeout time.Duration) Option {
	return func(cl *Client) {
		cl.checkInterval = interval
		cl.checkTimeout = timeout
	}
}

// NewClient creates a Relay client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logrus.StandardLogger(),
		retryMax:      3,
		checkInterval: 2 * time.Second,
		checkTimeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newRetryClient(c.retryMax).StandardClient()
	}
	return c
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	return rc
}

// doJSON sends a request and decodes a JSON response into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
