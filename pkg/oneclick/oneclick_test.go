package oneclick

import (
	"math/big"
	"testing"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	user    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	deposit = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	usdc    = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

func TestDepositStepNative(t *testing.T) {
	req := types.QuoteRequest{User: user, OriginChainID: 8453, OriginCurrency: types.NativeAddress, Amount: "1000000000000000"}

	step, err := DepositStep(req, deposit)
	require.NoError(t, err)
	assert.Equal(t, DepositStepID, step.ID)
	assert.Equal(t, deposit, step.RequestID)
	require.Len(t, step.Items, 1)

	tx, err := types.TxRequestFrom(step.Items[0].Data)
	require.NoError(t, err)
	assert.Equal(t, deposit, tx.To)
	assert.Equal(t, "1000000000000000", tx.Value)
	assert.Equal(t, "0x", tx.Data)
	assert.Equal(t, int64(8453), tx.ChainID)
	assert.Equal(t, user, tx.From)
}

func TestDepositStepERC20(t *testing.T) {
	req := types.QuoteRequest{User: user, OriginChainID: 8453, OriginCurrency: usdc, Amount: "2500000"}

	step, err := DepositStep(req, deposit)
	require.NoError(t, err)

	tx, err := types.TxRequestFrom(step.Items[0].Data)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(usdc).Hex(), tx.To)
	assert.Equal(t, "0", tx.Value)

	want, err := wallet.PackTransfer(common.HexToAddress(deposit), big.NewInt(2_500_000))
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(want), tx.Data)
	assert.Equal(t, tx.Data, step.CallData)
}

func TestDepositStepRejectsNonEVMAddress(t *testing.T) {
	_, err := DepositStep(types.QuoteRequest{Amount: "1", OriginCurrency: types.NativeAddress}, "alice.near")
	assert.Error(t, err)
}

func TestOfferQuote(t *testing.T) {
	req := types.QuoteRequest{User: user, Recipient: user, OriginChainID: 1, OriginCurrency: types.NativeAddress, Amount: "500000000000000000"}
	offer := Offer{DepositAddress: deposit, AmountInFormatted: "0.5", AmountOutFormatted: "1234.56", AmountInUSD: "1235.10", AmountOutUSD: "1234.40", TimeEstimate: 20}

	q, err := offer.Quote(req, 6)
	require.NoError(t, err)
	assert.Equal(t, "1234560000", q.ExpectedOutput)
	assert.Equal(t, 20, q.TimeEstimate)
	assert.Equal(t, "1235.10", q.InputUSD)
	assert.Equal(t, "1234.40", q.OutputUSD)
	assert.Equal(t, deposit, q.Details.Get("depositAddress").Str())
	require.Len(t, q.Steps, 1)

	dry := Offer{AmountOutFormatted: "1"}
	q, err = dry.Quote(req, 6)
	require.NoError(t, err)
	assert.Empty(t, q.Steps, "dry quotes carry no deposit")
}

func TestSameAsset(t *testing.T) {
	assert.True(t, sameAsset("", types.NativeAddress))
	assert.True(t, sameAsset("", "native"))
	assert.False(t, sameAsset(usdc, types.NativeAddress))
	assert.True(t, sameAsset("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", usdc))
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{"SUCCESS", "refunded", "FAILED"} {
		assert.True(t, IsTerminal(s), s)
	}
	for _, s := range []string{"PENDING_DEPOSIT", "PROCESSING", "KNOWN_DEPOSIT_TX", ""} {
		assert.False(t, IsTerminal(s), s)
	}
}
