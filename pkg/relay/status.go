package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"moleswap/pkg/types"
)

// GetStatus returns the remote state of a submitted request
func (c *Client) GetStatus(ctx context.Context, requestID string) (*types.SwapStatus, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request id is required")
	}

	var resp statusResponse
	path := "/intents/status/v2?" + url.Values{"requestId": {requestID}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	return &types.SwapStatus{
		RequestID: requestID,
		Status:    resp.Status,
		TxHashes:  resp.TxHashes,
		InHashes:  resp.InTxHashes,
		UpdatedAt: resp.UpdatedAt,
	}, nil
}
