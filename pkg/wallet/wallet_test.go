package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"moleswap/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat account #0
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type fakeBackend struct {
	mu       sync.Mutex
	chainID  int64
	gas      uint64
	sent     []*ethtypes.Transaction
	receipts map[common.Hash]*ethtypes.Receipt
	closed   bool
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }
func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2e8), nil
}
func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(42).Bytes(), 32), nil
}
func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}
func (f *fakeBackend) Close() { f.closed = true }

func newTestSigner(t *testing.T, backend *fakeBackend) *KeySigner {
	t.Helper()
	s, err := NewKeySigner("0x"+testKey, map[int64][]string{backend.chainID: {"http://node"}},
		WithDialer(func(ctx context.Context, url string) (Backend, error) { return backend, nil }))
	require.NoError(t, err)
	return s
}

func TestKeySignerAddress(t *testing.T) {
	s := newTestSigner(t, &fakeBackend{chainID: 1})
	addr, err := s.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	_, err = NewKeySigner("not-hex", nil)
	assert.Error(t, err)
}

func TestKeySignerSwitchChain(t *testing.T) {
	backend := &fakeBackend{chainID: 8453}
	s := newTestSigner(t, backend)
	ctx := context.Background()

	_, err := s.ChainID(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = s.SwitchChain(ctx, 1)
	assert.ErrorIs(t, err, ErrUnrecognizedChain)

	require.NoError(t, s.SwitchChain(ctx, 8453))
	id, err := s.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id)

	require.NoError(t, EnsureChain(ctx, s, 8453))
}

func TestKeySignerRejectsEndpointOnWrongChain(t *testing.T) {
	backend := &fakeBackend{chainID: 10}
	s, err := NewKeySigner(testKey, map[int64][]string{1: {"http://wrong"}},
		WithDialer(func(ctx context.Context, url string) (Backend, error) { return backend, nil }))
	require.NoError(t, err)

	err = s.SwitchChain(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, backend.closed)
}

func TestKeySignerSendLegacy(t *testing.T) {
	backend := &fakeBackend{chainID: 1, gas: 100000}
	s := newTestSigner(t, backend)
	ctx := context.Background()
	require.NoError(t, s.SwitchChain(ctx, 1))

	hash, err := s.SendTransaction(ctx, types.TxRequest{
		To:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Data:    "0x095ea7b3",
		Value:   "1000",
		ChainID: 1,
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(ethtypes.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(120000), tx.Gas())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, big.NewInt(1000), tx.Value())

	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	assert.Equal(t, testAddress, from)
}

func TestKeySignerSendDynamicFee(t *testing.T) {
	backend := &fakeBackend{chainID: 8453}
	s := newTestSigner(t, backend)
	ctx := context.Background()
	require.NoError(t, s.SwitchChain(ctx, 8453))

	_, err := s.SendTransaction(ctx, types.TxRequest{
		To:           "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Gas:          "0x5208",
		MaxFeePerGas: "3000000000",
		ChainID:      8453,
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, big.NewInt(3e9), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(2e8), tx.GasTipCap())
}

func TestKeySignerRejectsOtherChain(t *testing.T) {
	backend := &fakeBackend{chainID: 1}
	s := newTestSigner(t, backend)
	ctx := context.Background()
	require.NoError(t, s.SwitchChain(ctx, 1))

	_, err := s.SendTransaction(ctx, types.TxRequest{To: testAddress.Hex(), ChainID: 10})
	assert.Error(t, err)
	assert.Empty(t, backend.sent)
}

func TestERC20Helpers(t *testing.T) {
	spender := common.HexToAddress("0xa5F565650890fBA1824Ee0F21EbBbF660a179934")
	data, err := PackApprove(spender, MaxUint256)
	require.NoError(t, err)

	encoded := hexutil.Encode(data)
	assert.Equal(t, ApproveSelector, encoded[:10])

	got, ok := ApproveSpender(encoded)
	require.True(t, ok)
	assert.Equal(t, spender, got)

	_, ok = ApproveSpender("0xa9059cbb")
	assert.False(t, ok)

	want, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	assert.Equal(t, 0, MaxUint256.Cmp(want))

	backend := &fakeBackend{chainID: 1}
	bal, err := BalanceOf(context.Background(), readerFunc(func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
		return backend.CallContract(ctx, msg, nil)
	}), spender, testAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())

	_, err = Allowance(context.Background(), readerFunc(func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
		return nil, nil
	}), spender, testAddress, spender)
	assert.ErrorContains(t, err, "returned no data")
}

type readerFunc func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

func (f readerFunc) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return f(ctx, msg)
}

type countingReceipts struct {
	mu        sync.Mutex
	calls     int
	minedAt   int
	blockless bool
}

func (c *countingReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.minedAt > 0 && c.calls >= c.minedAt {
		return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}, nil
	}
	if c.blockless {
		return &ethtypes.Receipt{}, nil
	}
	return nil, ethereum.NotFound
}

func TestWaiterConfirms(t *testing.T) {
	reader := &countingReceipts{minedAt: 3}
	w := NewWaiter(5*time.Millisecond, time.Second, nil)

	receipt, err := w.Wait(context.Background(), reader, common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), receipt.BlockNumber.Int64())
	assert.Equal(t, WaitConfirmed, w.State())
	assert.Equal(t, 3, w.Attempts())
}

func TestWaiterTimesOut(t *testing.T) {
	reader := &countingReceipts{blockless: true}
	w := NewWaiter(5*time.Millisecond, 40*time.Millisecond, nil)

	_, err := w.Wait(context.Background(), reader, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, WaitTimedOut, w.State())
	assert.Greater(t, w.Attempts(), 1)
}

func TestWaiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWaiter(5*time.Millisecond, time.Second, nil)
	_, err := w.Wait(ctx, &countingReceipts{}, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, WaitCancelled, w.State())
}

func TestSessionLifecycle(t *testing.T) {
	backend := &fakeBackend{chainID: 1}
	connects := 0
	session := NewSession(func(ctx context.Context) (Signer, error) {
		connects++
		return newTestSigner(t, backend), nil
	})
	ctx := context.Background()

	assert.False(t, session.Connected())
	first, err := session.Signer(ctx)
	require.NoError(t, err)
	second, err := session.Signer(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, connects)

	require.NoError(t, first.SwitchChain(ctx, 1))
	require.NoError(t, session.Close())
	assert.True(t, backend.closed)

	_, err = session.Signer(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
	require.NoError(t, session.Close())
}

func TestSessionFactoryError(t *testing.T) {
	session := NewSession(func(ctx context.Context) (Signer, error) {
		return nil, errors.New("no key")
	})
	_, err := session.Signer(context.Background())
	assert.ErrorContains(t, err, "no key")
	assert.False(t, session.Connected())
}
