package types

import (
	"fmt"

	"moleswap/pkg/payload"
)

// TxRequest is an unsigned EVM transaction as aggregators describe it
type TxRequest struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	Data                 string `json:"data,omitempty"`
	Value                string `json:"value,omitempty"`
	ChainID              int64  `json:"chainId"`
	Gas                  string `json:"gas,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// TxRequestFrom reads a transaction request out of a step item's data.
func TxRequestFrom(v payload.Value) (TxRequest, error) {
	tx := TxRequest{
		From:                 v.Get("from").Text(),
		To:                   v.Get("to").Text(),
		Data:                 v.Get("data").Text(),
		Value:                v.Get("value").Text(),
		Gas:                  v.Get("gas").Text(),
		MaxFeePerGas:         v.Get("maxFeePerGas").Text(),
		MaxPriorityFeePerGas: v.Get("maxPriorityFeePerGas").Text(),
	}
	if id, ok := v.Get("chainId").Int64(); ok {
		tx.ChainID = id
	}
	if tx.To == "" {
		return TxRequest{}, fmt.Errorf("transaction has no destination")
	}
	return tx, nil
}
