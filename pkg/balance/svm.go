package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"moleswap/pkg/types"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// NativeSVMToken is the system program id used for native SOL
const NativeSVMToken = types.NativeSVMAddress

// SVMClient is the Solana RPC access the SVM adapter needs
type SVMClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// SVMAdapter reads SOL and SPL token balances
type SVMAdapter struct {
	client     SVMClient
	commitment rpc.CommitmentType
	chains     map[int64]bool
}

// NewSVMAdapter creates an adapter for rpcURL. chainIDs limits which
// directory chains it serves; empty means any svm chain.
func NewSVMAdapter(rpcURL, commitment string, chainIDs ...int64) *SVMAdapter {
	return NewSVMAdapterWithClient(rpc.New(rpcURL), commitment, chainIDs...)
}

// NewSVMAdapterWithClient creates an adapter over an existing client
func NewSVMAdapterWithClient(client SVMClient, commitment string, chainIDs ...int64) *SVMAdapter {
	a := &SVMAdapter{client: client, commitment: parseCommitment(commitment)}
	if len(chainIDs) > 0 {
		a.chains = make(map[int64]bool, len(chainIDs))
		for _, id := range chainIDs {
			a.chains[id] = true
		}
	}
	return a
}

func (a *SVMAdapter) VMType() string { return types.VMTypeSVM }

// SupportsChain implements Adapter
func (a *SVMAdapter) SupportsChain(chain *types.Chain) bool {
	return a.chains == nil || a.chains[chain.ID]
}

// GetBalance implements Adapter
func (a *SVMAdapter) GetBalance(ctx context.Context, chain *types.Chain, walletAddr, token string) (*big.Int, error) {
	owner, err := solana.PublicKeyFromBase58(walletAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	if token == "" || token == NativeSVMToken || token == types.NativeAddress {
		balance, err := a.client.GetBalance(ctx, owner, a.commitment)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return new(big.Int).SetUint64(balance.Value), nil
	}

	mint, err := solana.PublicKeyFromBase58(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	// Balances live in the owner's associated token account
	account, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	info, err := a.client.GetTokenAccountBalance(ctx, account, a.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("token account %s has no balance", account)
	}

	amount, ok := new(big.Int).SetString(info.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse token balance %q", info.Value.Amount)
	}
	return amount, nil
}

// parseCommitment maps a config string to a commitment level
func parseCommitment(s string) rpc.CommitmentType {
	switch strings.ToLower(s) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
