package relay

import (
	"context"
	"fmt"
	"net/http"

	"moleswap/pkg/types"
)

type chainsResponse struct {
	Chains []types.Chain `json:"chains"`
}

// ListChains fetches the supported chains
func (c *Client) ListChains(ctx context.Context) ([]types.Chain, error) {
	var resp chainsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chains", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get chains: %w", err)
	}
	return resp.Chains, nil
}
