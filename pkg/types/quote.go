package types

import (
	"moleswap/pkg/payload"

	"github.com/shopspring/decimal"
)

// Quote is the normalized form of an aggregator quote
type Quote struct {
	Steps          []Step        `json:"steps"`
	Fees           Fees          `json:"fees"`
	ExpectedOutput string        `json:"expectedOutput"`
	TimeEstimate   int           `json:"timeEstimate"`
	Route          string        `json:"route,omitempty"`
	Spender        string        `json:"spender,omitempty"`
	Operation      string        `json:"operation,omitempty"`
	User           string        `json:"user,omitempty"`
	Recipient      string        `json:"recipient,omitempty"`
	InputUSD       string        `json:"inputUsd,omitempty"`
	OutputUSD      string        `json:"outputUsd,omitempty"`
	Details        payload.Value `json:"details"`
}

// Fees is the fee breakdown of a quote
type Fees struct {
	TotalUSD  decimal.Decimal            `json:"totalUsd"`
	Breakdown map[string]decimal.Decimal `json:"breakdown,omitempty"`
	Raw       payload.Value              `json:"raw"`
}

// Step is one stage of a quote's execution plan
type Step struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Type        string     `json:"type,omitempty"`
	Action      string     `json:"action,omitempty"`
	Description string     `json:"description,omitempty"`
	Kind        string     `json:"kind"`
	RequestID   string     `json:"requestId,omitempty"`
	Spender     string     `json:"spender,omitempty"`
	CallData    string     `json:"callData,omitempty"`
	Items       []StepItem `json:"items"`
}

// StepItem is a single transaction or signature within a step
type StepItem struct {
	Status string        `json:"status"`
	Data   payload.Value `json:"data"`
	Check  *Check        `json:"check,omitempty"`
}

// Check points at the endpoint that reports an item's completion
type Check struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
}

// Progress is a snapshot reported while a quote executes
type Progress struct {
	Steps       []Step        `json:"steps"`
	Fees        Fees          `json:"fees"`
	CurrentStep string        `json:"currentStep,omitempty"`
	TxHashes    []string      `json:"txHashes"`
	Details     payload.Value `json:"details"`
}

// Clone returns a deep copy of the quote
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	out := *q
	out.Details = q.Details.Clone()
	out.Fees.Raw = q.Fees.Raw.Clone()
	if q.Fees.Breakdown != nil {
		out.Fees.Breakdown = make(map[string]decimal.Decimal, len(q.Fees.Breakdown))
		for k, v := range q.Fees.Breakdown {
			out.Fees.Breakdown[k] = v
		}
	}
	out.Steps = make([]Step, len(q.Steps))
	for i, s := range q.Steps {
		out.Steps[i] = s.Clone()
	}
	return &out
}

// Clone returns a deep copy of the step
func (s Step) Clone() Step {
	out := s
	out.Items = make([]StepItem, len(s.Items))
	for i, item := range s.Items {
		out.Items[i] = StepItem{Status: item.Status, Data: item.Data.Clone()}
		if item.Check != nil {
			c := *item.Check
			out.Items[i].Check = &c
		}
	}
	return out
}
