// Package swap executes a reviewed quote against the connected wallet.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"moleswap/pkg/amount"
	"moleswap/pkg/approval"
	"moleswap/pkg/metrics"
	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidSigner is returned when the connected address is a placeholder.
	ErrInvalidSigner = errors.New("invalid wallet address, please connect a valid wallet")
	// ErrChainMismatch is returned when the wallet cannot be moved to the source chain.
	ErrChainMismatch = errors.New("chain mismatch")
)

// State is the executor's position in a single execution
type State int

const (
	StateNotStarted State = iota
	StateSwitchingChain
	StateCheckingApproval
	StateApproving
	StateSubmitting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateSwitchingChain:
		return "switching_chain"
	case StateCheckingApproval:
		return "checking_approval"
	case StateApproving:
		return "approving"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Aggregator runs a quote's steps through a signer
type Aggregator interface {
	Execute(ctx context.Context, quote *types.Quote, signer wallet.Signer, onProgress func(types.Progress)) error
}

// Hooks observe an execution. OnStart fires once, when the first transaction
// hash is reported; OnStop fires once after it when the execution ends.
type Hooks struct {
	OnState    func(State)
	OnStart    func()
	OnStop     func()
	OnProgress func(types.Progress)
}

// Input is what the executor needs besides the signer
type Input struct {
	Quote       *types.Quote
	SourceChain *types.Chain
	SourceToken *types.Token
	// Amount is the input amount in base units
	Amount string
}

// Execution is the progress of one run
type Execution struct {
	ID           string
	State        State
	Steps        []types.Step
	CurrentStep  string
	TxHashes     []string
	ApprovalHash string
	Message      string
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// LastHash returns the final transaction hash, if any
func (e *Execution) LastHash() string {
	if len(e.TxHashes) == 0 {
		return ""
	}
	return e.TxHashes[len(e.TxHashes)-1]
}

// Option configures an Executor
type Option func(*Executor)

func WithHooks(h Hooks) Option {
	return func(e *Executor) { e.hooks = h }
}

func WithLogger(l *logrus.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// Executor runs quotes end to end: chain switch, signer validation,
// sanitization, approval and submission.
type Executor struct {
	agg     Aggregator
	gate    *approval.Gate
	hooks   Hooks
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewExecutor creates an executor
func NewExecutor(agg Aggregator, gate *approval.Gate, opts ...Option) *Executor {
	e := &Executor{agg: agg, gate: gate, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if e.gate == nil {
		e.gate = approval.NewGate(approval.WithLogger(e.logger))
	}
	return e
}

type run struct {
	e       *Executor
	exec    *Execution
	log     *logrus.Entry
	mu      sync.Mutex
	started bool
}

func (r *run) setState(s State) {
	r.mu.Lock()
	r.exec.State = s
	r.mu.Unlock()

	r.log.WithField("state", s.String()).Debug("Execution state changed")
	if r.e.hooks.OnState != nil {
		r.e.hooks.OnState(s)
	}
}

// Execute runs in.Quote with signer. The returned Execution is always
// non-nil and terminal; err is its failure, if any.
func (e *Executor) Execute(ctx context.Context, in Input, signer wallet.Signer) (*Execution, error) {
	r := &run{
		e:    e,
		exec: &Execution{ID: uuid.NewString(), State: StateNotStarted, StartedAt: time.Now()},
	}
	r.log = e.logger.WithField("execution", r.exec.ID)

	err := r.execute(ctx, in, signer)

	r.exec.FinishedAt = time.Now()
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		r.exec.Err = err
		r.exec.Message = err.Error()
		r.setState(StateFailed)
		r.log.WithError(err).Error("Swap failed")
	} else {
		r.setState(StateCompleted)
		r.log.WithField("tx", r.exec.LastHash()).Info("Swap completed")
	}
	e.metrics.ObserveExecution(result, r.exec.FinishedAt.Sub(r.exec.StartedAt))
	e.metrics.AddTransactions(len(r.exec.TxHashes))

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started && e.hooks.OnStop != nil {
		e.hooks.OnStop()
	}
	return r.exec, err
}

func (r *run) execute(ctx context.Context, in Input, signer wallet.Signer) error {
	if in.Quote == nil {
		return errors.New("no quote to execute")
	}
	if in.SourceChain == nil || in.SourceChain.ID == 0 {
		return errors.New("unable to determine expected chain id from quote")
	}
	if signer == nil {
		return fmt.Errorf("no wallet available, please connect your wallet: %w", wallet.ErrNotConnected)
	}

	r.setState(StateSwitchingChain)
	if err := switchChain(ctx, signer, in.SourceChain); err != nil {
		return err
	}

	owner, err := signer.Address(ctx)
	if err != nil {
		return fmt.Errorf("no wallet account available: %w", err)
	}
	if IsBurnAddress(owner.Hex()) {
		return ErrInvalidSigner
	}

	sanitized := Sanitize(in.Quote, owner.Hex())
	if ContainsBurnAddress(sanitized) {
		r.log.Warn("Placeholder address still present after sanitization")
	}

	if in.SourceToken != nil {
		hash, err := r.approve(ctx, signer, sanitized, in)
		if err != nil {
			return err
		}
		r.exec.ApprovalHash = hash
	}

	stripped, removed := StripApprovals(sanitized)
	if removed > 0 {
		r.log.WithField("removed", removed).Debug("Stripped approval steps")
	}
	r.exec.Steps = stripped.Steps

	r.setState(StateSubmitting)
	if err := r.e.agg.Execute(ctx, stripped, signer, r.onProgress); err != nil {
		return err
	}
	return nil
}

func switchChain(ctx context.Context, signer wallet.Signer, chain *types.Chain) error {
	err := wallet.EnsureChain(ctx, signer, chain.ID)
	if err == nil {
		var current int64
		current, err = signer.ChainID(ctx)
		if err == nil && current != chain.ID {
			err = fmt.Errorf("wallet is on chain %d", current)
		}
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, wallet.ErrUnrecognizedChain) {
		return fmt.Errorf("%w: please switch your wallet to chain %d (%s) manually", ErrChainMismatch, chain.ID, chain.Label())
	}
	return fmt.Errorf("%w: please ensure your wallet is connected to %s: failed to switch to chain %d: %w",
		ErrChainMismatch, chain.Label(), chain.ID, err)
}

func (r *run) approve(ctx context.Context, signer wallet.Signer, q *types.Quote, in Input) (string, error) {
	if in.SourceToken.Native || in.SourceChain.IsNative(in.SourceToken.Address) {
		return "", nil
	}
	required, ok := amount.Parse(in.Amount)
	if !ok {
		return "", fmt.Errorf("invalid input amount %q", in.Amount)
	}
	st, needed, err := approval.NeedsApproval(q, in.SourceToken.Address, required)
	if err != nil {
		return "", err
	}
	if !needed {
		return "", nil
	}

	r.setState(StateCheckingApproval)
	sufficient, err := r.e.gate.Check(ctx, signer, st)
	if err != nil {
		return "", err
	}
	if sufficient {
		return "", nil
	}

	r.setState(StateApproving)
	hash, err := r.e.gate.Approve(ctx, signer, st)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (r *run) onProgress(p types.Progress) {
	hashes := make([]string, 0, len(p.TxHashes))
	for _, h := range p.TxHashes {
		if h == "" || (r.exec.ApprovalHash != "" && strings.EqualFold(h, r.exec.ApprovalHash)) {
			continue
		}
		hashes = append(hashes, h)
	}
	p.TxHashes = hashes

	r.mu.Lock()
	r.exec.Steps = p.Steps
	r.exec.CurrentStep = p.CurrentStep
	if len(hashes) > 0 {
		r.exec.TxHashes = hashes
	}
	fire := !r.started && len(hashes) > 0
	if fire {
		r.started = true
	}
	r.mu.Unlock()

	if fire {
		r.log.WithField("tx", hashes[0]).Info("First transaction submitted")
		if r.e.hooks.OnStart != nil {
			r.e.hooks.OnStart()
		}
	}
	if r.e.hooks.OnProgress != nil {
		r.e.hooks.OnProgress(p)
	}
}
