// Package oneclick adapts the NEAR Intents 1Click API to the swap flow's
// aggregator contract. A quote becomes a single deposit step.
package oneclick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdk "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/sirupsen/logrus"
)

// Swap states reported by the status endpoint
const (
	StatusSuccess  = "SUCCESS"
	StatusRefunded = "REFUNDED"
	StatusFailed   = "FAILED"
)

// Default polling of the execution status after a deposit
const (
	DefaultStatusInterval = 5 * time.Second
	DefaultStatusTimeout  = 30 * time.Minute
)

// ChainNames maps EVM chain ids to 1Click blockchain names
var ChainNames = map[int64]string{
	1:     "eth",
	8453:  "base",
	42161: "arb",
	10:    "op",
	137:   "pol",
	56:    "bsc",
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API host
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithPolling sets how deposits and swap status are awaited
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		c.interval = interval
		c.timeout = timeout
	}
}

// Client wraps the 1Click SDK
type Client struct {
	api        *sdk.APIClient
	jwtToken   string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	interval   time.Duration
	timeout    time.Duration
}

// NewClient creates a new 1Click API client
func NewClient(jwtToken string, opts ...Option) *Client {
	c := &Client{
		jwtToken: jwtToken,
		logger:   logrus.StandardLogger(),
		interval: DefaultStatusInterval,
		timeout:  DefaultStatusTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	config := sdk.NewConfiguration()
	if c.baseURL != "" {
		config.Servers = sdk.ServerConfigurations{{URL: strings.TrimRight(c.baseURL, "/")}}
	}
	if c.httpClient != nil {
		config.HTTPClient = c.httpClient
	}
	c.api = sdk.NewAPIClient(config)
	return c
}

// authorize attaches the JWT the SDK reads from the context
func (c *Client) authorize(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, sdk.ContextAccessToken, c.jwtToken)
}

// Tokens retrieves all supported tokens
func (c *Client) Tokens(ctx context.Context) ([]sdk.TokenResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.authorize(ctx)).Execute()
	if err != nil {
		return nil, apiError("failed to get tokens", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return resp, nil
}

// FindToken returns the token listed on chainID with the given contract
// address. Native tokens are listed without a contract address.
func (c *Client) FindToken(ctx context.Context, chainID int64, address string) (*sdk.TokenResponse, error) {
	chain, ok := ChainNames[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d is not supported by 1Click", chainID)
	}

	tokens, err := c.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tokens {
		token := tokens[i]
		if strings.ToLower(string(token.GetBlockchain())) != chain {
			continue
		}
		if sameAsset(token.GetContractAddress(), address) {
			return &token, nil
		}
	}
	return nil, fmt.Errorf("token %s not found on chain %s", address, chain)
}

// apiError extracts the message from a failed SDK call's response body
func apiError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return fmt.Errorf("%s (status: %d): %w", op, httpResp.StatusCode, err)
	}

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil {
		if message, ok := parsed["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errs, ok := parsed["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errs)
		}
	}
	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
}
