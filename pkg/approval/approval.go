// Package approval decides whether a quote needs an ERC-20 allowance and
// grants it when the current one falls short.
package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"moleswap/pkg/metrics"
	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultTimeout      = 90 * time.Second
)

var (
	// ErrApprovalTimeout is returned when the approval is not mined within the timeout.
	ErrApprovalTimeout = errors.New("approval transaction not confirmed in time")
	// ErrSpenderUnknown is returned when a quote has an approval step but no
	// spender can be found for it.
	ErrSpenderUnknown = errors.New("approval required but spender unknown")
)

// State is the allowance requirement derived from one quote
type State struct {
	Token     common.Address
	Spender   common.Address
	Required  *big.Int
	Allowance *big.Int
}

// IsApprovalStep reports whether a step grants an ERC-20 allowance. The
// aggregator does not flag approvals explicitly, so this matches on the step's
// descriptive fields and on approve() call data.
func IsApprovalStep(s types.Step) bool {
	for _, field := range []string{s.ID, s.Name, s.Description, s.Type, s.Action} {
		if strings.Contains(strings.ToLower(field), "approv") {
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(s.CallData), wallet.ApproveSelector)
}

// NeedsApproval returns the allowance requirement for spending required of
// token, or false when the quote has no approval step. An approval step whose
// spender cannot be resolved yields ErrSpenderUnknown.
func NeedsApproval(q *types.Quote, token string, required *big.Int) (*State, bool, error) {
	if q == nil || types.IsNativeAddress(token) || !common.IsHexAddress(token) {
		return nil, false, nil
	}

	for _, step := range q.Steps {
		if !IsApprovalStep(step) {
			continue
		}
		spender, ok := resolveSpender(step, q)
		if !ok {
			return nil, true, fmt.Errorf("%w (step %q)", ErrSpenderUnknown, stepLabel(step))
		}
		return &State{
			Token:    common.HexToAddress(token),
			Spender:  spender,
			Required: new(big.Int).Set(required),
		}, true, nil
	}
	return nil, false, nil
}

func stepLabel(s types.Step) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func resolveSpender(step types.Step, q *types.Quote) (common.Address, bool) {
	if common.IsHexAddress(step.Spender) {
		return common.HexToAddress(step.Spender), true
	}
	if spender, ok := wallet.ApproveSpender(step.CallData); ok {
		return spender, true
	}
	if common.IsHexAddress(q.Spender) {
		return common.HexToAddress(q.Spender), true
	}
	return common.Address{}, false
}

// CheckAllowance reads owner's allowance for spender
func CheckAllowance(ctx context.Context, reader wallet.ContractReader, token, owner, spender common.Address) (*big.Int, error) {
	return wallet.Allowance(ctx, reader, token, owner, spender)
}

// Option configures a Gate
type Option func(*Gate)

func WithPolling(interval, timeout time.Duration) Option {
	return func(g *Gate) {
		g.interval = interval
		g.timeout = timeout
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// Gate performs approvals on behalf of the connected signer
type Gate struct {
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

// NewGate creates an approval gate
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		interval: DefaultPollInterval,
		timeout:  DefaultTimeout,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureApproval approves st.Spender for the maximum amount unless the current
// allowance already covers st.Required, then waits for the approval to be
// mined. It returns the approval hash, or the zero hash if none was sent.
func (g *Gate) EnsureApproval(ctx context.Context, signer wallet.Signer, st *State) (common.Hash, error) {
	sufficient, err := g.Check(ctx, signer, st)
	if err != nil || sufficient {
		return common.Hash{}, err
	}
	return g.Approve(ctx, signer, st)
}

// Check reads the signer's allowance into st and reports whether it covers
// st.Required. An unreadable allowance counts as insufficient.
func (g *Gate) Check(ctx context.Context, signer wallet.Signer, st *State) (bool, error) {
	owner, err := signer.Address(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get signer address: %w", err)
	}
	log := g.logger.WithFields(logrus.Fields{"token": st.Token.Hex(), "spender": st.Spender.Hex(), "owner": owner.Hex()})

	allowance, err := CheckAllowance(ctx, signer, st.Token, owner, st.Spender)
	if err != nil {
		log.WithError(err).Warn("Allowance check failed, requesting approval")
		st.Allowance = big.NewInt(0)
		return false, nil
	}
	st.Allowance = allowance

	if allowance.Cmp(st.Required) >= 0 {
		log.WithField("allowance", allowance.String()).Debug("Allowance sufficient")
		g.metrics.ObserveApproval(metrics.ResultSkipped)
		return true, nil
	}
	return false, nil
}

// Approve sends one approve(spender, 2^256-1) and blocks until it is mined or
// the timeout elapses.
func (g *Gate) Approve(ctx context.Context, signer wallet.Signer, st *State) (common.Hash, error) {
	owner, err := signer.Address(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get signer address: %w", err)
	}
	chainID, err := signer.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain id: %w", err)
	}

	data, err := wallet.PackApprove(st.Spender, wallet.MaxUint256)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve data: %w", err)
	}

	hash, err := signer.SendTransaction(ctx, types.TxRequest{
		From:    owner.Hex(),
		To:      st.Token.Hex(),
		Data:    hexutil.Encode(data),
		Value:   "0",
		ChainID: chainID,
	})
	if err != nil {
		g.metrics.ObserveApproval(metrics.ResultError)
		return common.Hash{}, fmt.Errorf("failed to send approval: %w", err)
	}

	log := g.logger.WithFields(logrus.Fields{"token": st.Token.Hex(), "spender": st.Spender.Hex(), "tx": hash.Hex()})
	log.Info("Approval submitted")

	receipt, err := wallet.NewWaiter(g.interval, g.timeout, g.logger).Wait(ctx, signer, hash)
	if err != nil {
		if errors.Is(err, wallet.ErrConfirmationTimeout) {
			g.metrics.ObserveApproval(metrics.ResultTimeout)
			return hash, fmt.Errorf("%w: %s", ErrApprovalTimeout, hash.Hex())
		}
		g.metrics.ObserveApproval(metrics.ResultError)
		return hash, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		g.metrics.ObserveApproval(metrics.ResultError)
		return hash, fmt.Errorf("approval transaction %s reverted", hash.Hex())
	}

	st.Allowance = new(big.Int).Set(wallet.MaxUint256)
	g.metrics.ObserveApproval(metrics.ResultSuccess)
	log.Info("Approval confirmed")
	return hash, nil
}
