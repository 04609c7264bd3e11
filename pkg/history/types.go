// Package history keeps a local record of executed swaps.
package history

import "time"

// Status of a recorded swap
type Status string

const (
	StatusCompleted Status = "completed" // Swap executed and confirmed
	StatusFailed    Status = "failed"    // Execution ended with an error
	StatusSettled   Status = "settled"   // Remote status reported success
	StatusRefunded  Status = "refunded"  // Remote status reported a refund
)

// Record is one swap attempt
type Record struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
	Aggregator  string    `json:"aggregator"`

	SourceChain  int64  `json:"source_chain"`
	SourceToken  string `json:"source_token"`
	DestChain    int64  `json:"dest_chain"`
	DestToken    string `json:"dest_token"`
	AmountIn     string `json:"amount_in"`
	ExpectedOut  string `json:"expected_out,omitempty"`
	User         string `json:"user"`
	Recipient    string `json:"recipient"`
	RequestID    string `json:"request_id,omitempty"`
	ApprovalHash string `json:"approval_hash,omitempty"`

	Status   Status   `json:"status"`
	TxHashes []string `json:"tx_hashes,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// LastHash returns the final transaction hash of the swap
func (r *Record) LastHash() string {
	if len(r.TxHashes) == 0 {
		return ""
	}
	return r.TxHashes[len(r.TxHashes)-1]
}
