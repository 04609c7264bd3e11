// Package quote builds quote requests and keeps the current quote fresh.
package quote

import (
	"strings"

	"moleswap/pkg/amount"
	"moleswap/pkg/types"
)

// IsWrap reports whether req converts a chain's native token into a contract
// token on the same chain. The aggregator requires user == recipient for these.
func IsWrap(req types.SwapRequest) bool {
	if req.SourceChain == nil || req.DestChain == nil || req.SourceToken == nil || req.DestToken == nil {
		return false
	}
	if req.SourceChain.ID != req.DestChain.ID {
		return false
	}
	fromNative := req.SourceToken.Native || req.SourceChain.IsNative(req.SourceToken.Address)
	toContract := !req.DestToken.Native && !req.DestChain.IsNative(req.DestToken.Address)
	return fromNative && toContract
}

// BuildRequest converts a selection into the aggregator's wire request. It
// returns false while the selection cannot be quoted yet.
func BuildRequest(req types.SwapRequest) (types.QuoteRequest, bool) {
	if req.SourceChain == nil || req.DestChain == nil || req.SourceToken == nil || req.DestToken == nil {
		return types.QuoteRequest{}, false
	}

	base := amount.ToBaseUnits(req.Amount, req.SourceToken.Decimals)
	if !amount.IsPositive(base) {
		return types.QuoteRequest{}, false
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		user = types.PlaceholderUser
	}

	recipient := strings.TrimSpace(req.Recipient)
	if IsWrap(req) || recipient == "" {
		recipient = user
	}

	return types.QuoteRequest{
		User:                user,
		Recipient:           recipient,
		OriginChainID:       req.SourceChain.ID,
		DestinationChainID:  req.DestChain.ID,
		OriginCurrency:      currencyAddress(req.SourceToken),
		DestinationCurrency: currencyAddress(req.DestToken),
		Amount:              base,
		TradeType:           types.TradeTypeExactInput,
	}, true
}

func currencyAddress(t *types.Token) string {
	if t.Address == "" {
		return types.NativeAddress
	}
	return t.Address
}
