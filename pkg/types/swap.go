package types

// TradeTypeExactInput is the only trade type the swap flow requests.
const TradeTypeExactInput = "EXACT_INPUT"

// PlaceholderUser stands in for the user address when no wallet is connected.
const PlaceholderUser = "0x000000000000000000000000000000000000dead"

// SwapRequest represents the user's current selection
type SwapRequest struct {
	SourceChain *Chain
	SourceToken *Token
	DestChain   *Chain
	DestToken   *Token
	Amount      string
	User        string
	Recipient   string
}

// QuoteRequest is the wire form sent to the aggregator
type QuoteRequest struct {
	User                string `json:"user"`
	Recipient           string `json:"recipient"`
	OriginChainID       int64  `json:"originChainId"`
	DestinationChainID  int64  `json:"destinationChainId"`
	OriginCurrency      string `json:"originCurrency"`
	DestinationCurrency string `json:"destinationCurrency"`
	Amount              string `json:"amount"`
	TradeType           string `json:"tradeType"`
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	SourceAmount  string
	SourceToken   string
	DestAmount    string
	DestToken     string
	SourceUSD     string
	DestUSD       string
	Rate          string
	Fee           string
	Route         string
	EstimatedTime string
}

// SwapStatus represents the remote status of a submitted swap
type SwapStatus struct {
	RequestID string   `json:"request_id"`
	Status    string   `json:"status"`
	TxHashes  []string `json:"tx_hashes,omitempty"`
	InHashes  []string `json:"in_tx_hashes,omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty"`
}
