package balance

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holder = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

var usdc = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

type fakeEVM struct {
	blockErr   error
	balanceErr error
	callErr    error
	native     *big.Int
	tokens     map[common.Address]*big.Int
	closed     bool
}

// nodeError is a JSON-RPC error object returned by a reachable node
type nodeError struct {
	code int
	msg  string
}

func (e nodeError) Error() string  { return e.msg }
func (e nodeError) ErrorCode() int { return e.code }

func (f *fakeEVM) BlockNumber(ctx context.Context) (uint64, error) { return 100, f.blockErr }

func (f *fakeEVM) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.native, f.balanceErr
}

func (f *fakeEVM) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if _, ok := f.tokens[account]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (f *fakeEVM) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	v := f.tokens[*msg.To]
	if v == nil {
		return nil, nil
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func (f *fakeEVM) Close() { f.closed = true }

type dialLog struct {
	mu    sync.Mutex
	urls  []string
	nodes map[string]*fakeEVM
}

func (d *dialLog) dial(ctx context.Context, url string) (EVMClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	n, ok := d.nodes[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return n, nil
}

func evmChain(id int64) *types.Chain {
	return &types.Chain{ID: id, Name: "base", VMType: "evm"}
}

func TestEVMAdapterFallsBackToHealthyEndpoint(t *testing.T) {
	healthy := &fakeEVM{native: big.NewInt(5e17)}
	d := &dialLog{nodes: map[string]*fakeEVM{
		"https://slow":    {blockErr: errors.New("timeout")},
		"https://healthy": healthy,
	}}
	a := NewEVMAdapter(map[int64][]string{8453: {"https://down", "https://slow", "https://healthy"}}, nil).WithDialer(d.dial)

	v, err := a.GetBalance(context.Background(), evmChain(8453), holder, "")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5e17), v)
	assert.Equal(t, []string{"https://down", "https://slow", "https://healthy"}, d.urls)
	assert.True(t, d.nodes["https://slow"].closed)

	// cached client is reused
	_, err = a.GetBalance(context.Background(), evmChain(8453), holder, types.NativeAddress)
	require.NoError(t, err)
	assert.Len(t, d.urls, 3)
}

func TestEVMAdapterDropsClientAfterError(t *testing.T) {
	node := &fakeEVM{native: big.NewInt(1)}
	d := &dialLog{nodes: map[string]*fakeEVM{"https://a": node}}
	a := NewEVMAdapter(map[int64][]string{1: {"https://a"}}, nil).WithDialer(d.dial)

	_, err := a.GetBalance(context.Background(), evmChain(1), holder, "")
	require.NoError(t, err)

	node.balanceErr = errors.New("rate limited")
	_, err = a.GetBalance(context.Background(), evmChain(1), holder, "")
	require.Error(t, err)
	assert.True(t, node.closed)

	node.balanceErr = nil
	_, err = a.GetBalance(context.Background(), evmChain(1), holder, "")
	require.NoError(t, err)
	assert.Len(t, d.urls, 2, "redialed after the failure")
}

func TestEVMAdapterTokenBalance(t *testing.T) {
	node := &fakeEVM{tokens: map[common.Address]*big.Int{usdc: big.NewInt(2_500_000)}}
	d := &dialLog{nodes: map[string]*fakeEVM{"https://a": node}}
	a := NewEVMAdapter(map[int64][]string{8453: {"https://a"}}, nil).WithDialer(d.dial)

	v, err := a.GetBalance(context.Background(), evmChain(8453), holder, usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_500_000), v)

	_, err = a.GetBalance(context.Background(), evmChain(8453), holder, "0x0000000000000000000000000000000000000bad")
	require.ErrorIs(t, err, errNotContract)
	assert.False(t, node.closed, "a missing contract is not a node failure")
}

func TestEVMAdapterKeepsClientWhenNodeAnswers(t *testing.T) {
	node := &fakeEVM{tokens: map[common.Address]*big.Int{usdc: big.NewInt(7)}}
	d := &dialLog{nodes: map[string]*fakeEVM{"https://a": node}}
	a := NewEVMAdapter(map[int64][]string{8453: {"https://a"}}, nil).WithDialer(d.dial)

	node.callErr = nodeError{code: 3, msg: "execution reverted"}
	v, err := a.GetBalance(context.Background(), evmChain(8453), holder, usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, "0", v.String(), "a reverting balanceOf reads as zero")
	assert.False(t, node.closed)

	node.callErr = nodeError{code: -32000, msg: "header not found"}
	_, err = a.GetBalance(context.Background(), evmChain(8453), holder, usdc.Hex())
	require.Error(t, err)
	assert.False(t, node.closed, "a node error is not a transport failure")

	node.callErr = nil
	node.tokens[usdc] = nil
	_, err = a.GetBalance(context.Background(), evmChain(8453), holder, usdc.Hex())
	require.ErrorIs(t, err, wallet.ErrBadResult)
	assert.False(t, node.closed)
	assert.Len(t, d.urls, 1, "cached client reused throughout")

	node.callErr = errors.New("connection reset by peer")
	_, err = a.GetBalance(context.Background(), evmChain(8453), holder, usdc.Hex())
	require.Error(t, err)
	assert.True(t, node.closed, "transport failures evict the client")
}

func TestNativeTokenSpellings(t *testing.T) {
	node := &fakeEVM{native: big.NewInt(9)}
	d := &dialLog{nodes: map[string]*fakeEVM{"https://a": node}}
	a := NewEVMAdapter(map[int64][]string{1: {"https://a"}}, nil).WithDialer(d.dial)

	for _, tok := range []string{"", types.NativeAddress, "native", "ETH", "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"} {
		v, err := a.GetBalance(context.Background(), evmChain(1), holder, tok)
		require.NoError(t, err, tok)
		assert.Equal(t, int64(9), v.Int64(), tok)
	}
}

type fakeSolana struct {
	lamports uint64
	accounts map[solana.PublicKey]string
}

func (f *fakeSolana) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeSolana) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	amount, ok := f.accounts[account]
	if !ok {
		return nil, errors.New("could not find account")
	}
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: amount}}, nil
}

func TestSVMAdapter(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	fake := &fakeSolana{lamports: 1_500_000_000, accounts: map[solana.PublicKey]string{ata: "42000000"}}
	a := NewSVMAdapterWithClient(fake, "confirmed", 792703809)
	chain := &types.Chain{ID: 792703809, Name: "solana", VMType: "svm"}

	assert.True(t, a.SupportsChain(chain))
	assert.False(t, a.SupportsChain(&types.Chain{ID: 1, VMType: "svm"}))

	v, err := a.GetBalance(context.Background(), chain, owner.String(), NativeSVMToken)
	require.NoError(t, err)
	assert.Equal(t, "1500000000", v.String())

	v, err = a.GetBalance(context.Background(), chain, owner.String(), mint.String())
	require.NoError(t, err)
	assert.Equal(t, "42000000", v.String())

	_, err = a.GetBalance(context.Background(), chain, solana.NewWallet().PublicKey().String(), mint.String())
	assert.Error(t, err)
}

type stubAdapter struct {
	vm       string
	balances map[string]*big.Int
}

func (s stubAdapter) VMType() string                        { return s.vm }
func (s stubAdapter) SupportsChain(chain *types.Chain) bool { return true }

func (s stubAdapter) GetBalance(ctx context.Context, chain *types.Chain, w, token string) (*big.Int, error) {
	v, ok := s.balances[token]
	if !ok {
		return nil, errors.New("boom")
	}
	return v, nil
}

func TestResolverTreatsFailureAsUnavailable(t *testing.T) {
	r := NewResolver(NewRegistry(stubAdapter{vm: "evm", balances: map[string]*big.Int{"": big.NewInt(7)}}), nil)

	res := r.GetBalance(context.Background(), &types.Chain{ID: 1}, holder, "")
	assert.True(t, res.Available, "missing vm type resolves to evm")
	assert.Equal(t, int64(7), res.Value.Int64())

	res = r.GetBalance(context.Background(), &types.Chain{ID: 1}, holder, usdc.Hex())
	assert.False(t, res.Available)
	assert.Nil(t, res.Value)

	res = r.GetBalance(context.Background(), &types.Chain{ID: 9, VMType: "bvm"}, holder, "")
	assert.False(t, res.Available)
}

func TestGetBalancesBatch(t *testing.T) {
	r := NewResolver(NewRegistry(stubAdapter{vm: "evm", balances: map[string]*big.Int{
		types.NativeAddress: big.NewInt(1),
		usdc.Hex():          big.NewInt(2),
	}}), nil)

	tokens := []types.Token{
		{Symbol: "ETH", Address: types.NativeAddress},
		{Symbol: "USDC", Address: usdc.Hex()},
		{Symbol: "BAD", Address: "0x0000000000000000000000000000000000000bad"},
	}

	var mu sync.Mutex
	got := map[string]Result{}
	r.GetBalances(context.Background(), evmChain(8453), holder, tokens, func(key string, res Result) {
		mu.Lock()
		got[key] = res
		mu.Unlock()
	})

	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[Key(8453, usdc.Hex())].Value.Int64())
	assert.Contains(t, got, "8453-0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	assert.False(t, got[Key(8453, "0x0000000000000000000000000000000000000bad")].Available)
}

var _ wallet.ContractReader = contractCaller{}
