package quote

import (
	"fmt"

	"github.com/shopspring/decimal"

	"moleswap/pkg/amount"
	"moleswap/pkg/types"
)

// Summarize renders the labels shown when reviewing a quote
func Summarize(q *types.Quote, req types.QuoteRequest, src, dst *types.Token) types.QuoteDisplay {
	d := types.QuoteDisplay{
		SourceAmount:  amount.FromBaseUnits(req.Amount, src.Decimals),
		SourceToken:   src.Symbol,
		DestAmount:    "-",
		DestToken:     dst.Symbol,
		Rate:          "-",
		Fee:           "-",
		Route:         "-",
		EstimatedTime: FormatETA(0),
	}
	if q == nil {
		return d
	}

	if q.ExpectedOutput != "" {
		d.DestAmount = amount.FormatDisplay(amount.FromBaseUnits(q.ExpectedOutput, dst.Decimals), 6)
		if r, err := amount.Rate(req.Amount, src.Decimals, q.ExpectedOutput, dst.Decimals); err == nil {
			d.Rate = fmt.Sprintf("1 %s = %s %s", src.Symbol, r.Truncate(6).String(), dst.Symbol)
		}
	}
	d.SourceUSD = usd(q.InputUSD)
	d.DestUSD = usd(q.OutputUSD)
	if !q.Fees.TotalUSD.IsZero() {
		d.Fee = amount.FormatUSD(q.Fees.TotalUSD)
	}
	if q.Route != "" {
		d.Route = q.Route
	}
	d.EstimatedTime = FormatETA(q.TimeEstimate)
	return d
}

// FormatETA renders an estimate in seconds
func FormatETA(seconds int) string {
	switch {
	case seconds <= 0:
		return "-"
	case seconds < 60:
		return fmt.Sprintf("~%ds", seconds)
	default:
		return fmt.Sprintf("~%dm", (seconds+59)/60)
	}
}

func usd(s string) string {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return ""
	}
	return amount.FormatUSD(v)
}
