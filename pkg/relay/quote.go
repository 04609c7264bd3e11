package relay

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"moleswap/pkg/payload"
	"moleswap/pkg/types"

	"github.com/shopspring/decimal"
)

// GetQuote requests a quote and normalizes the response
func (c *Client) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	if req.TradeType == "" {
		req.TradeType = types.TradeTypeExactInput
	}

	var raw payload.Value
	if err := c.doJSON(ctx, http.MethodPost, "/quote", req, &raw); err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	quote, err := NormalizeQuote(raw)
	if err != nil {
		return nil, err
	}
	if quote.User == "" {
		quote.User = req.User
	}
	if quote.Recipient == "" {
		quote.Recipient = req.Recipient
	}
	return quote, nil
}

var (
	expectedOutputPaths = []string{
		"toAmount", "expectedOutput", "output.amount", "amountOut",
		"details.toAmount", "details.to.amount", "details.currencyOut.amount",
		"steps.0.toAmount", "steps.0.to.amount", "steps.0.outputAmount",
	}
	feeTotalPaths = []string{
		"feesUsd", "totalFeesUsd", "fees.totalUsd", "fees.usd", "breakdown.totalUsd", "totalUsd",
	}
	etaPaths = []string{
		"estimatedTimeSeconds", "etaSeconds", "durationSeconds", "details.etaSeconds",
		"details.eta.seconds", "details.timeEstimate",
	}
	inputUSDPaths = []string{
		"fromAmountUsd", "inputUsd", "amountInUsd", "details.fromAmountUsd", "details.inputUsd",
		"details.currencyIn.amountUsd",
	}
	outputUSDPaths = []string{
		"toAmountUsd", "outputUsd", "amountOutUsd", "details.toAmountUsd", "details.outputUsd",
		"details.currencyOut.amountUsd",
	}
)

// NormalizeQuote maps a raw quote payload onto the typed Quote.
func NormalizeQuote(raw payload.Value) (*types.Quote, error) {
	if raw.Kind() != payload.Object {
		return nil, fmt.Errorf("unexpected quote payload: %s", raw.Kind())
	}

	q := &types.Quote{
		ExpectedOutput: raw.FirstText(expectedOutputPaths...),
		Spender:        raw.FirstText("details.spender", "spender"),
		Operation:      raw.FirstText("details.operation", "operation"),
		User:           raw.FirstText("details.sender", "user"),
		Recipient:      raw.FirstText("details.recipient", "recipient"),
		InputUSD:       raw.FirstText(inputUSDPaths...),
		OutputUSD:      raw.FirstText(outputUSDPaths...),
		Details:        raw.Get("details").Clone(),
	}

	for _, s := range raw.Get("steps").Items() {
		q.Steps = append(q.Steps, normalizeStep(s))
	}

	q.Fees = normalizeFees(raw)
	q.TimeEstimate = timeEstimate(raw)
	q.Route = routeLabel(raw)

	return q, nil
}

func normalizeStep(raw payload.Value) types.Step {
	step := types.Step{
		ID:          raw.Get("id").Text(),
		Name:        raw.Get("name").Text(),
		Type:        raw.FirstText("type", "operation"),
		Action:      raw.Get("action").Text(),
		Description: raw.Get("description").Text(),
		Kind:        raw.Get("kind").Text(),
		RequestID:   raw.Get("requestId").Text(),
		Spender:     raw.FirstText("spender", "to"),
		CallData:    raw.FirstText("transaction.data", "tx.data", "request.data", "items.0.data.data"),
	}

	for _, it := range raw.Get("items").Items() {
		item := types.StepItem{
			Status: it.Get("status").Text(),
			Data:   it.Get("data").Clone(),
		}
		if check := it.Get("check"); check.Kind() == payload.Object {
			item.Check = &types.Check{
				Endpoint: check.Get("endpoint").Text(),
				Method:   check.Get("method").Text(),
			}
		}
		step.Items = append(step.Items, item)
	}
	return step
}

func normalizeFees(raw payload.Value) types.Fees {
	fees := types.Fees{Raw: raw.Get("fees").Clone()}

	if total, ok := parseUSD(raw.FirstText(feeTotalPaths...)); ok {
		fees.TotalUSD = total
		return fees
	}

	feeNode := raw.Get("fees")
	switch {
	case feeNode.Get("breakdown").Kind() == payload.Array:
		for _, f := range feeNode.Get("breakdown").Items() {
			if v, ok := parseUSD(f.FirstText("usd", "usdValue")); ok {
				fees.TotalUSD = fees.TotalUSD.Add(v)
			}
		}
	case feeNode.Kind() == payload.Object:
		// Either a top-level usd number or one fee object per component
		for _, k := range feeNode.Keys() {
			child := feeNode.Get(k)
			if strings.Contains(strings.ToLower(k), "usd") && child.Kind() == payload.Number {
				if v, ok := parseUSD(child.Text()); ok {
					fees.TotalUSD = v
					return fees
				}
			}
			if v, ok := parseUSD(child.FirstText("amountUsd", "usd")); ok {
				if fees.Breakdown == nil {
					fees.Breakdown = map[string]decimal.Decimal{}
				}
				fees.Breakdown[k] = v
				fees.TotalUSD = fees.TotalUSD.Add(v)
			}
		}
	}

	if fees.TotalUSD.IsZero() {
		for _, s := range raw.Get("steps").Items() {
			if v, ok := parseUSD(s.FirstText("fees.usd", "fees.totalUsd")); ok {
				fees.TotalUSD = fees.TotalUSD.Add(v)
			}
		}
	}
	if fees.TotalUSD.IsZero() {
		if v, ok := parseUSD(raw.FirstText("details.fees.usd", "details.fees.totalUsd")); ok {
			fees.TotalUSD = v
		}
	}
	return fees
}

func parseUSD(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

func timeEstimate(raw payload.Value) int {
	for _, p := range etaPaths {
		if v, ok := raw.Path(p).Float64(); ok && v > 0 {
			return int(math.Ceil(v))
		}
	}

	// Longest step or item estimate
	var eta float64
	probe := func(v payload.Value) {
		for _, p := range []string{"etaSeconds", "durationSeconds", "eta.seconds"} {
			if s, ok := v.Path(p).Float64(); ok && s > 0 {
				if s > eta {
					eta = s
				}
				return
			}
		}
	}
	for _, s := range raw.Get("steps").Items() {
		probe(s)
		for _, it := range s.Get("items").Items() {
			probe(it)
		}
	}
	return int(math.Ceil(eta))
}

func routeLabel(raw payload.Value) string {
	if name := raw.Path("route.name").Text(); name != "" {
		return name
	}

	var parts []string
	if sources := raw.Get("sources").Items(); len(sources) > 0 {
		for _, s := range sources {
			if name := s.Get("name").Text(); name != "" {
				parts = append(parts, name)
			} else if text := s.Text(); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " → ")
	}

	for _, s := range raw.Get("steps").Items() {
		if name := s.FirstText("name", "source"); name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, " → ")
}
