package swap

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"moleswap/pkg/approval"
	"moleswap/pkg/payload"
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

var (
	ethereumChain = &types.Chain{ID: 1, Name: "ethereum", DisplayName: "Ethereum"}
	usdcToken     = &types.Token{Symbol: "USDC", Address: usdc, Decimals: 6}
	ethToken      = &types.Token{Symbol: "ETH", Address: types.NativeAddress, Decimals: 18, Native: true}
)

func mustParse(t *testing.T, s string) payload.Value {
	t.Helper()
	v, err := payload.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func dirtyQuote(t *testing.T) *types.Quote {
	return &types.Quote{
		User:      types.PlaceholderUser,
		Recipient: "0xDEAD000000000000000000000000000000000000",
		Details: mustParse(t, `{
			"sender": "0x000000000000000000000000000000000000dEaD",
			"nested": {"deeper": [{"anything": "0xdead000000000000000000000000000000000000"}, ["0x000000000000000000000000000000000000dead"]]},
			"fromAccount": "0x0000000000000000000000000000000000000000",
			"keep": "0x1111111111111111111111111111111111111111",
			"amount": 5
		}`),
		Steps: []types.Step{{
			ID:   "deposit",
			Kind: "transaction",
			Items: []types.StepItem{{
				Status: "incomplete",
				Data:   mustParse(t, `{"from":"0x000000000000000000000000000000000000dead","to":"0x2222222222222222222222222222222222222222","data":"0xabcdef","value":"1","chainId":1}`),
			}},
		}},
	}
}

func TestSanitizeReplacesBurnAddressesAtAnyDepth(t *testing.T) {
	q := dirtyQuote(t)
	require.True(t, ContainsBurnAddress(q))

	clean := Sanitize(q, owner)
	assert.False(t, ContainsBurnAddress(clean))

	clean.Details.Walk(func(key, s string) {
		for _, b := range BurnAddresses {
			assert.False(t, strings.EqualFold(s, b), "key %s still holds %s", key, s)
		}
	})
	assert.Equal(t, owner, clean.User)
	assert.Equal(t, owner, clean.Recipient)
	assert.Equal(t, owner, clean.Details.Get("sender").Str())
	assert.Equal(t, owner, clean.Details.Path("nested.deeper.0.anything").Str())
	assert.Equal(t, owner, clean.Details.Path("nested.deeper.1.0").Str())
	assert.Equal(t, "0x1111111111111111111111111111111111111111", clean.Details.Get("keep").Str())
	assert.Equal(t, owner, clean.Steps[0].Items[0].Data.Get("from").Str())
	assert.Equal(t, "0x2222222222222222222222222222222222222222", clean.Steps[0].Items[0].Data.Get("to").Str())

	// the input is untouched
	assert.True(t, ContainsBurnAddress(q))
	assert.Equal(t, types.PlaceholderUser, q.User)
}

func TestStripApprovals(t *testing.T) {
	q := &types.Quote{Steps: []types.Step{
		{ID: "approve", Name: "Approve"},
		{ID: "s1", CallData: "0x095ea7b3aaaa"},
		{ID: "deposit", Name: "Deposit"},
	}}
	out, removed := StripApprovals(q)
	assert.Equal(t, 2, removed)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "deposit", out.Steps[0].ID)
	assert.Len(t, q.Steps, 3)
}

type fakeAggregator struct {
	progress [][]string
	err      error
	quote    *types.Quote
}

func (f *fakeAggregator) Execute(ctx context.Context, q *types.Quote, signer wallet.Signer, onProgress func(types.Progress)) error {
	f.quote = q
	for _, hashes := range f.progress {
		onProgress(types.Progress{Steps: q.Steps, CurrentStep: "deposit", TxHashes: hashes})
	}
	return f.err
}

type recorder struct {
	mu     sync.Mutex
	states []State
	starts int
	stops  int
	events []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnState: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnStart: func() {
			r.mu.Lock()
			r.starts++
			r.events = append(r.events, "start")
			r.mu.Unlock()
		},
		OnStop: func() {
			r.mu.Lock()
			r.stops++
			r.events = append(r.events, "stop")
			r.mu.Unlock()
		},
		OnProgress: func(p types.Progress) {
			r.mu.Lock()
			r.events = append(r.events, "progress")
			r.mu.Unlock()
		},
	}
}

func newExecutor(agg Aggregator, rec *recorder) *Executor {
	gate := approval.NewGate(approval.WithPolling(5*time.Millisecond, time.Second))
	return NewExecutor(agg, gate, WithHooks(rec.hooks()))
}

// The start signal fires once, on the first non-empty hash list.
func TestStartSignalFiresOnce(t *testing.T) {
	agg := &fakeAggregator{progress: [][]string{{}, {"0xaaa"}, {"0xaaa"}, {"0xaaa", "0xbbb"}}}
	rec := &recorder{}
	signer := wallettest.New(owner, 1)

	exec, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
	}, signer)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, 1, rec.stops)
	assert.Equal(t, []string{"progress", "start", "progress", "progress", "progress", "stop"}, rec.events)
	assert.Equal(t, []State{StateSwitchingChain, StateSubmitting, StateCompleted}, rec.states)
	assert.Equal(t, StateCompleted, exec.State)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, exec.TxHashes)
	assert.Equal(t, "0xbbb", exec.LastHash())
	assert.NotEmpty(t, exec.ID)
	assert.False(t, ContainsBurnAddress(agg.quote), "aggregator receives the sanitized quote")
}

func TestFailureStopsStartedIndicator(t *testing.T) {
	agg := &fakeAggregator{progress: [][]string{{"0xaaa"}}, err: errors.New("solver refunded the deposit")}
	rec := &recorder{}

	exec, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
	}, wallettest.New(owner, 1))
	require.Error(t, err)

	assert.Equal(t, StateFailed, exec.State)
	assert.Equal(t, "solver refunded the deposit", exec.Message)
	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, 1, rec.stops)
}

func TestFailureBeforeStartHasNoStop(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("rejected")}
	rec := &recorder{}

	_, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
	}, wallettest.New(owner, 1))
	require.Error(t, err)
	assert.Zero(t, rec.starts)
	assert.Zero(t, rec.stops)
}

func TestUnrecognizedChainAsksForManualSwitch(t *testing.T) {
	signer := wallettest.New(owner, 8453)
	signer.Chains = map[int64]bool{8453: true}
	agg := &fakeAggregator{}
	rec := &recorder{}

	exec, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
	}, signer)
	require.ErrorIs(t, err, ErrChainMismatch)
	assert.Contains(t, exec.Message, "please switch your wallet to chain 1 (Ethereum) manually")
	assert.Nil(t, agg.quote, "nothing submitted")
	assert.Equal(t, []State{StateSwitchingChain, StateFailed}, rec.states)
}

func TestSwitchFailureIsChainMismatch(t *testing.T) {
	signer := wallettest.New(owner, 8453)
	signer.SwitchErr = errors.New("user rejected the request")

	_, err := newExecutor(&fakeAggregator{}, &recorder{}).Execute(context.Background(), Input{
		Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
	}, signer)
	require.ErrorIs(t, err, ErrChainMismatch)
	assert.Contains(t, err.Error(), "user rejected the request")
	assert.Equal(t, []int64{1}, signer.Switches())
}

func TestBurnSignerRejected(t *testing.T) {
	for _, addr := range BurnAddresses {
		agg := &fakeAggregator{}
		exec, err := newExecutor(agg, &recorder{}).Execute(context.Background(), Input{
			Quote: dirtyQuote(t), SourceChain: ethereumChain, SourceToken: ethToken, Amount: "1",
		}, wallettest.New(addr, 1))
		require.ErrorIs(t, err, ErrInvalidSigner)
		assert.Contains(t, exec.Message, "connect a valid wallet")
		assert.Nil(t, agg.quote)
	}
}

func approvalQuote(t *testing.T) *types.Quote {
	data, err := wallet.PackApprove(common.HexToAddress(spender), big.NewInt(1))
	require.NoError(t, err)
	return &types.Quote{Steps: []types.Step{
		{ID: "approve", Kind: "transaction", CallData: hexutil.Encode(data)},
		{ID: "deposit", Kind: "transaction"},
	}}
}

func TestApprovalRunsBeforeSubmission(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = func(ethereum.CallMsg) ([]byte, error) { return wallettest.Uint256(big.NewInt(0)), nil }
	agg := &fakeAggregator{}
	rec := &recorder{}

	exec, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: approvalQuote(t), SourceChain: ethereumChain, SourceToken: usdcToken, Amount: "1000000",
	}, signer)
	require.NoError(t, err)

	require.Len(t, signer.Sent(), 1)
	assert.Equal(t, signer.Hashes()[0].Hex(), exec.ApprovalHash)
	assert.Equal(t, []State{StateSwitchingChain, StateCheckingApproval, StateApproving, StateSubmitting, StateCompleted}, rec.states)
	require.Len(t, agg.quote.Steps, 1, "approval step is not submitted again")
	assert.Equal(t, "deposit", agg.quote.Steps[0].ID)
}

// echoAggregator reports every hash the signer has sent plus its own.
type echoAggregator struct{}

func (echoAggregator) Execute(ctx context.Context, q *types.Quote, signer wallet.Signer, onProgress func(types.Progress)) error {
	var hashes []string
	for _, h := range signer.(*wallettest.Signer).Hashes() {
		hashes = append(hashes, h.Hex())
	}
	onProgress(types.Progress{Steps: q.Steps, TxHashes: append(hashes, "0xswap")})
	return nil
}

func TestApprovalHashFilteredFromProgress(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = func(ethereum.CallMsg) ([]byte, error) { return wallettest.Uint256(big.NewInt(0)), nil }

	exec, err := newExecutor(echoAggregator{}, &recorder{}).Execute(context.Background(), Input{
		Quote: approvalQuote(t), SourceChain: ethereumChain, SourceToken: usdcToken, Amount: "1000000",
	}, signer)
	require.NoError(t, err)
	require.NotEmpty(t, exec.ApprovalHash)
	assert.Equal(t, []string{"0xswap"}, exec.TxHashes)
}

func TestSufficientAllowanceSkipsApproving(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = func(ethereum.CallMsg) ([]byte, error) { return wallettest.Uint256(wallet.MaxUint256), nil }
	rec := &recorder{}

	exec, err := newExecutor(&fakeAggregator{}, rec).Execute(context.Background(), Input{
		Quote: approvalQuote(t), SourceChain: ethereumChain, SourceToken: usdcToken, Amount: "1000000",
	}, signer)
	require.NoError(t, err)
	assert.Empty(t, exec.ApprovalHash)
	assert.Empty(t, signer.Sent())
	assert.Equal(t, []State{StateSwitchingChain, StateCheckingApproval, StateSubmitting, StateCompleted}, rec.states)
}

// An approval step whose spender cannot be resolved stops the swap before the
// deposit goes out.
func TestUnresolvedSpenderFailsBeforeSubmission(t *testing.T) {
	signer := wallettest.New(owner, 1)
	signer.Call = func(ethereum.CallMsg) ([]byte, error) { return wallettest.Uint256(big.NewInt(0)), nil }
	agg := &fakeAggregator{}
	rec := &recorder{}

	q := &types.Quote{Steps: []types.Step{
		{ID: "step-0", Name: "Approve USDC", Kind: "transaction", CallData: "0x87517c450000000000000000000000000000000000000000000000000000000000000001"},
		{ID: "deposit", Kind: "transaction"},
	}}
	exec, err := newExecutor(agg, rec).Execute(context.Background(), Input{
		Quote: q, SourceChain: ethereumChain, SourceToken: usdcToken, Amount: "1000000",
	}, signer)
	require.ErrorIs(t, err, approval.ErrSpenderUnknown)

	assert.Equal(t, StateFailed, exec.State)
	assert.Contains(t, exec.Message, "approval required but spender unknown")
	assert.Empty(t, signer.Sent())
	assert.Nil(t, agg.quote, "deposit not submitted")
	assert.NotContains(t, rec.states, StateSubmitting)
}

func TestSanitizeTypedFields(t *testing.T) {
	dead := "0x000000000000000000000000000000000000dEaD"
	q := &types.Quote{
		Route:     dead,
		Operation: "swap",
		Steps: []types.Step{{
			ID:        dead,
			RequestID: "0xdead000000000000000000000000000000000000",
			Items: []types.StepItem{{
				Check: &types.Check{Endpoint: "/intents/status?user=0x000000000000000000000000000000000000DEAD&id=1", Method: "GET"},
			}},
		}},
	}
	require.True(t, ContainsBurnAddress(q))

	clean := Sanitize(q, owner)
	assert.False(t, ContainsBurnAddress(clean))
	assert.Equal(t, owner, clean.Route)
	assert.Equal(t, "swap", clean.Operation)
	assert.Equal(t, owner, clean.Steps[0].ID)
	assert.Equal(t, owner, clean.Steps[0].RequestID)
	assert.Equal(t, "/intents/status?user="+owner+"&id=1", clean.Steps[0].Items[0].Check.Endpoint)

	assert.Equal(t, dead, q.Steps[0].ID, "the input is untouched")
	assert.Contains(t, q.Steps[0].Items[0].Check.Endpoint, "DEAD")
}
