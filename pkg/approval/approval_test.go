package approval

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"
	"moleswap/pkg/wallet/wallettest"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	usdc    = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	spender = "0xa5F565650890fBA1824Ee0F21EbBbF660a179934"
)

func approveCallData(t *testing.T, amount *big.Int) string {
	t.Helper()
	data, err := wallet.PackApprove(common.HexToAddress(spender), amount)
	require.NoError(t, err)
	return hexutil.Encode(data)
}

func allowanceReturns(v *big.Int) func(ethereum.CallMsg) ([]byte, error) {
	return func(msg ethereum.CallMsg) ([]byte, error) {
		return wallettest.Uint256(v), nil
	}
}

func fastGate() *Gate {
	return NewGate(WithPolling(5*time.Millisecond, time.Second))
}

func TestIsApprovalStep(t *testing.T) {
	assert.True(t, IsApprovalStep(types.Step{ID: "approve"}))
	assert.True(t, IsApprovalStep(types.Step{Name: "Approve USDC"}))
	assert.True(t, IsApprovalStep(types.Step{Description: "Sign an approval for USDC"}))
	assert.True(t, IsApprovalStep(types.Step{Type: "APPROVAL"}))
	assert.True(t, IsApprovalStep(types.Step{ID: "step-1", CallData: "0x095EA7B3000000"}))
	assert.False(t, IsApprovalStep(types.Step{ID: "deposit", Name: "Deposit", CallData: "0xa9059cbb"}))
}

func TestNeedsApprovalSpenderResolution(t *testing.T) {
	required := big.NewInt(1_000_000)

	fromStep := &types.Quote{Steps: []types.Step{{ID: "approve", Spender: spender}}}
	st, ok, err := NeedsApproval(fromStep, usdc, required)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(spender), st.Spender)
	assert.Equal(t, common.HexToAddress(usdc), st.Token)

	fromCallData := &types.Quote{Steps: []types.Step{{ID: "s1", CallData: approveCallData(t, required)}}}
	st, ok, err = NeedsApproval(fromCallData, usdc, required)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(spender), st.Spender)

	fromQuote := &types.Quote{Spender: spender, Steps: []types.Step{{ID: "approve"}}}
	st, ok, err = NeedsApproval(fromQuote, usdc, required)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(spender), st.Spender)

	_, ok, err = NeedsApproval(&types.Quote{Steps: []types.Step{{ID: "deposit"}}}, usdc, required)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = NeedsApproval(fromStep, types.NativeAddress, required)
	require.NoError(t, err)
	assert.False(t, ok, "native tokens are never approved")
}

func TestNeedsApprovalUnresolvedSpender(t *testing.T) {
	required := big.NewInt(1_000_000)

	bare := &types.Quote{Steps: []types.Step{{ID: "approve"}}}
	st, ok, err := NeedsApproval(bare, usdc, required)
	assert.Nil(t, st)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrSpenderUnknown)

	// Named as an approval but carrying calldata for some other method.
	other := &types.Quote{Steps: []types.Step{{
		ID:       "step-0",
		Name:     "Approve USDC",
		CallData: "0x87517c450000000000000000000000000000000000000000000000000000000000000001",
	}}}
	_, ok, err = NeedsApproval(other, usdc, required)
	assert.True(t, ok)
	require.ErrorIs(t, err, ErrSpenderUnknown)
	assert.Contains(t, err.Error(), "Approve USDC")
}

func TestEnsureApprovalSufficient(t *testing.T) {
	required := big.NewInt(5_000_000)
	for _, allowance := range []*big.Int{required, big.NewInt(5_000_001), wallet.MaxUint256} {
		signer := wallettest.New(owner, 1)
		signer.Call = allowanceReturns(allowance)

		st := &State{Token: common.HexToAddress(usdc), Spender: common.HexToAddress(spender), Required: required}
		hash, err := fastGate().EnsureApproval(context.Background(), signer, st)
		require.NoError(t, err)
		assert.Equal(t, common.Hash{}, hash)
		assert.Empty(t, signer.Sent(), "allowance %s needs no transaction", allowance)
		assert.Equal(t, allowance, st.Allowance)
	}
}

func TestEnsureApprovalInsufficient(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = allowanceReturns(big.NewInt(999))
	signer.MinedAfter = 2

	st := &State{Token: common.HexToAddress(usdc), Spender: common.HexToAddress(spender), Required: big.NewInt(1000)}
	hash, err := fastGate().EnsureApproval(context.Background(), signer, st)
	require.NoError(t, err)

	sent := signer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToAddress(usdc).Hex(), sent[0].To)
	assert.Equal(t, approveCallData(t, wallet.MaxUint256), sent[0].Data)
	assert.Equal(t, int64(1), sent[0].ChainID)
	assert.Equal(t, 3, signer.Lookups(hash), "returned only after the receipt was mined")
	assert.Equal(t, wallet.MaxUint256, st.Allowance)
}

func TestEnsureApprovalFailSafe(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = func(ethereum.CallMsg) ([]byte, error) { return nil, errors.New("execution reverted") }

	st := &State{Token: common.HexToAddress(usdc), Spender: common.HexToAddress(spender), Required: big.NewInt(1)}
	_, err := fastGate().EnsureApproval(context.Background(), signer, st)
	require.NoError(t, err)
	assert.Len(t, signer.Sent(), 1, "an unreadable allowance is treated as insufficient")
}

func TestEnsureApprovalTimeout(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = allowanceReturns(big.NewInt(0))
	signer.MinedAfter = 1 << 30

	gate := NewGate(WithPolling(5*time.Millisecond, 40*time.Millisecond))
	st := &State{Token: common.HexToAddress(usdc), Spender: common.HexToAddress(spender), Required: big.NewInt(1)}
	_, err := gate.EnsureApproval(context.Background(), signer, st)
	require.ErrorIs(t, err, ErrApprovalTimeout)
	assert.Len(t, signer.Sent(), 1)
}

func TestEnsureApprovalReverted(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = allowanceReturns(big.NewInt(0))
	signer.Reverted = true

	st := &State{Token: common.HexToAddress(usdc), Spender: common.HexToAddress(spender), Required: big.NewInt(1)}
	_, err := fastGate().EnsureApproval(context.Background(), signer, st)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "reverted"))
}

// An approve() step with a zero allowance blocks until a receipt carrying a
// block number comes back.
func TestApprovalScenario(t *testing.T) {
	required := big.NewInt(25_000_000)
	q := &types.Quote{Steps: []types.Step{
		{ID: "step-0", Kind: "transaction", CallData: approveCallData(t, required)},
		{ID: "deposit", Kind: "transaction", CallData: "0x12345678"},
	}}

	st, ok, err := NeedsApproval(q, usdc, required)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(usdc), st.Token)
	assert.Equal(t, common.HexToAddress(spender), st.Spender)

	signer := wallettest.New(owner, 1)
	var allowanceCalls int
	signer.Call = func(msg ethereum.CallMsg) ([]byte, error) {
		allowanceCalls++
		assert.Equal(t, common.HexToAddress(usdc), *msg.To)
		return wallettest.Uint256(big.NewInt(0)), nil
	}
	signer.MinedAfter = 4

	hash, err := fastGate().EnsureApproval(context.Background(), signer, st)
	require.NoError(t, err)
	assert.Equal(t, 1, allowanceCalls)
	assert.Len(t, signer.Sent(), 1)
	assert.Equal(t, 5, signer.Lookups(hash))
}
