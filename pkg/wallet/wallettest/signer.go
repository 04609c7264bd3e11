// Package wallettest provides an in-memory wallet.Signer for tests.
package wallettest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer records every transaction it is asked to send. Receipts appear after
// MinedAfter lookups of a hash.
type Signer struct {
	Addr       common.Address
	Chain      int64
	Chains     map[int64]bool
	SwitchErr  error
	SendErr    error
	MinedAfter int
	Reverted   bool
	Call       func(msg ethereum.CallMsg) ([]byte, error)

	mu       sync.Mutex
	sent     []types.TxRequest
	hashes   []common.Hash
	lookups  map[common.Hash]int
	switches []int64
}

var _ wallet.Signer = (*Signer)(nil)

// New creates a signer for addr on chain
func New(addr string, chain int64) *Signer {
	return &Signer{Addr: common.HexToAddress(addr), Chain: chain}
}

func (s *Signer) Address(ctx context.Context) (common.Address, error) {
	return s.Addr, nil
}

func (s *Signer) ChainID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Chain, nil
}

func (s *Signer) SwitchChain(ctx context.Context, chainID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.switches = append(s.switches, chainID)
	if s.SwitchErr != nil {
		return s.SwitchErr
	}
	if s.Chains != nil && !s.Chains[chainID] {
		return fmt.Errorf("chain %d: %w", chainID, wallet.ErrUnrecognizedChain)
	}
	s.Chain = chainID
	return nil
}

func (s *Signer) SendTransaction(ctx context.Context, tx types.TxRequest) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SendErr != nil {
		return common.Hash{}, s.SendErr
	}
	s.sent = append(s.sent, tx)
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d-%s-%s", len(s.sent), tx.To, tx.Data)))
	s.hashes = append(s.hashes, hash)
	return hash, nil
}

func (s *Signer) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if s.Call == nil {
		return nil, fmt.Errorf("execution reverted")
	}
	return s.Call(msg)
}

func (s *Signer) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookups == nil {
		s.lookups = map[common.Hash]int{}
	}
	s.lookups[hash]++
	if s.lookups[hash] <= s.MinedAfter {
		return nil, ethereum.NotFound
	}

	status := ethtypes.ReceiptStatusSuccessful
	if s.Reverted {
		status = ethtypes.ReceiptStatusFailed
	}
	return &ethtypes.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(1)}, nil
}

// Sent returns the transactions sent so far
func (s *Signer) Sent() []types.TxRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TxRequest(nil), s.sent...)
}

// Hashes returns the hashes of the transactions sent so far
func (s *Signer) Hashes() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Hash(nil), s.hashes...)
}

// Switches returns every chain switch requested
func (s *Signer) Switches() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.switches...)
}

// Lookups returns how often a receipt was requested for hash
func (s *Signer) Lookups(hash common.Hash) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups[hash]
}

// Uint256 encodes v as a 32-byte ABI word for Call stubs
func Uint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
