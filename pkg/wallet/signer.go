// Package wallet defines the signer capability the swap flow consumes and a
// key-backed implementation of it.
package wallet

import (
	"context"
	"errors"

	"moleswap/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUnrecognizedChain is returned when the wallet has no way to reach a chain.
	ErrUnrecognizedChain = errors.New("unrecognized chain")
	// ErrNotConnected is returned before the wallet has selected any chain.
	ErrNotConnected = errors.New("wallet not connected")
)

// ContractReader performs read-only contract calls
type ContractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// ReceiptReader looks up mined transactions
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// Signer is a connected wallet on one active chain
type Signer interface {
	ContractReader
	ReceiptReader

	Address(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	SendTransaction(ctx context.Context, tx types.TxRequest) (common.Hash, error)
}

// EnsureChain switches the signer to chainID unless it is already there.
func EnsureChain(ctx context.Context, s Signer, chainID int64) error {
	current, err := s.ChainID(ctx)
	if err == nil && current == chainID {
		return nil
	}
	return s.SwitchChain(ctx, chainID)
}
