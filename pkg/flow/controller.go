// Package flow drives a swap through its screens: pick the pair, review the
// quote, execute it and acknowledge the result.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moleswap/pkg/amount"
	"moleswap/pkg/history"
	"moleswap/pkg/quote"
	"moleswap/pkg/swap"
	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/sirupsen/logrus"
)

// Step is a screen of the swap flow
type Step int

const (
	StepExchange Step = iota
	StepSwap
	StepTransactionInfo
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepExchange:
		return "exchange"
	case StepSwap:
		return "swap"
	case StepTransactionInfo:
		return "transaction-info"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

var (
	// ErrNoQuote is returned when there is no fresh quote to review or execute
	ErrNoQuote = errors.New("no fresh quote available")
	// ErrBusy is returned while an execution is in flight
	ErrBusy = errors.New("a swap is already in progress")
	// ErrWrongStep is returned when an action does not apply to the current step
	ErrWrongStep = errors.New("action not available at this step")
)

// SignerSource hands out the connected wallet
type SignerSource interface {
	Signer(ctx context.Context) (wallet.Signer, error)
}

// Recorder stores finished swaps
type Recorder interface {
	Add(r *history.Record) error
}

// Review is the quote pinned for the swap screen
type Review struct {
	Selection types.SwapRequest
	Request   types.QuoteRequest
	Quote     *types.Quote
	Display   types.QuoteDisplay
	Warning   string
	PinnedAt  time.Time
	ExpiresAt time.Time
}

// View is a point-in-time copy of the controller state
type View struct {
	Step      Step
	Busy      bool
	Message   string
	Review    *Review
	Execution *swap.Execution
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder stores finished swaps in r
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithAggregatorName labels history records
func WithAggregatorName(name string) Option {
	return func(c *Controller) { c.aggregator = name }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the step machine of one swap session
type Controller struct {
	quotes   *quote.Manager
	executor *swap.Executor
	signers  SignerSource

	recorder   Recorder
	aggregator string
	logger     *logrus.Logger
	now        func() time.Time

	mu        sync.Mutex
	step      Step
	selection types.SwapRequest
	review    *Review
	exec      *swap.Execution
	busy      bool
	message   string
}

// NewController wires the quote manager and executor into one flow
func NewController(quotes *quote.Manager, executor *swap.Executor, signers SignerSource, opts ...Option) *Controller {
	c := &Controller{
		quotes:   quotes,
		executor: executor,
		signers:  signers,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View returns the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{Step: c.step, Busy: c.busy, Message: c.message, Review: c.review, Execution: c.exec}
}

// Step returns the current step
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Quotes exposes the quote manager for observers
func (c *Controller) Quotes() *quote.Manager {
	return c.quotes
}

// Select changes the pair or amount on the exchange screen and restarts
// quoting. It reports whether the selection is complete enough to quote.
func (c *Controller) Select(ctx context.Context, sel types.SwapRequest) (bool, error) {
	c.mu.Lock()
	if c.step != StepExchange {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: select on %s", ErrWrongStep, c.step)
	}
	c.selection = sel
	c.message = ""
	c.mu.Unlock()

	return c.quotes.Update(ctx, sel), nil
}

// Review pins the current fresh quote and moves to the swap screen. Calling
// it again on the swap screen re-pins the latest quote.
func (c *Controller) Review() (*Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return nil, ErrBusy
	}
	if c.step != StepExchange && c.step != StepSwap {
		return nil, fmt.Errorf("%w: review on %s", ErrWrongStep, c.step)
	}

	now := c.now()
	snap := c.quotes.Snapshot(now)
	if snap.State != quote.StateFresh || snap.Quote == nil {
		return nil, fmt.Errorf("%w (quote is %s)", ErrNoQuote, snap.State)
	}

	sel := c.selection
	c.review = &Review{
		Selection: sel,
		Request:   snap.Request,
		Quote:     snap.Quote,
		Display:   quote.Summarize(snap.Quote, snap.Request, sel.SourceToken, sel.DestToken),
		Warning:   snap.Warning,
		PinnedAt:  now,
		ExpiresAt: snap.UpdatedAt.Add(c.quotes.TTL()),
	}
	c.step = StepSwap
	c.message = ""
	return c.review, nil
}

// Submit executes the pinned quote. On success the flow moves to the
// transaction screen; on failure it stays on the swap screen with the error
// message so the user can retry or go back.
func (c *Controller) Submit(ctx context.Context) (*swap.Execution, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.step != StepSwap || c.review == nil {
		step := c.step
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: submit on %s", ErrWrongStep, step)
	}
	review := c.review
	if !c.now().Before(review.ExpiresAt) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: the reviewed quote expired", ErrNoQuote)
	}
	c.busy = true
	c.message = ""
	c.mu.Unlock()

	exec, err := c.run(ctx, review)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.exec = exec
	if err != nil {
		c.message = err.Error()
		c.record(review, exec, err)
		return exec, err
	}
	c.step = StepTransactionInfo
	return exec, nil
}

func (c *Controller) run(ctx context.Context, review *Review) (*swap.Execution, error) {
	signer, err := c.signers.Signer(ctx)
	if err != nil {
		return nil, err
	}

	in := swap.Input{
		Quote:       review.Quote,
		SourceChain: review.Selection.SourceChain,
		SourceToken: review.Selection.SourceToken,
		Amount:      review.Request.Amount,
	}
	c.logger.WithFields(logrus.Fields{
		"from":   review.Display.SourceToken,
		"to":     review.Display.DestToken,
		"amount": review.Display.SourceAmount,
	}).Info("Submitting swap")

	return c.executor.Execute(ctx, in, signer)
}

// Confirm acknowledges the transaction screen, records the swap and moves to
// the success screen. The execution progress is discarded.
func (c *Controller) Confirm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepTransactionInfo {
		return fmt.Errorf("%w: confirm on %s", ErrWrongStep, c.step)
	}
	c.record(c.review, c.exec, nil)
	c.exec = nil
	c.step = StepSuccess
	return nil
}

// Back returns to the previous step. The success screen only leaves via Reset.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}
	switch c.step {
	case StepSwap:
		c.step = StepExchange
		c.review = nil
	case StepTransactionInfo:
		c.step = StepSwap
	default:
		return fmt.Errorf("%w: back on %s", ErrWrongStep, c.step)
	}
	c.message = ""
	return nil
}

// Reset returns to the exchange screen and drops the quote
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return ErrBusy
	}
	c.quotes.Update(context.Background(), types.SwapRequest{})
	c.step = StepExchange
	c.selection = types.SwapRequest{}
	c.review = nil
	c.exec = nil
	c.message = ""
	return nil
}

// Close stops background quoting
func (c *Controller) Close() {
	c.quotes.Stop()
}

// record stores the outcome of an execution. Callers hold the lock.
func (c *Controller) record(review *Review, exec *swap.Execution, err error) {
	if c.recorder == nil || review == nil {
		return
	}

	sel := review.Selection
	rec := &history.Record{
		Aggregator: c.aggregator,
		AmountIn:   sel.Amount,
		User:       review.Request.User,
		Recipient:  review.Request.Recipient,
		Status:     history.StatusCompleted,
	}
	if sel.SourceChain != nil {
		rec.SourceChain = sel.SourceChain.ID
	}
	if sel.DestChain != nil {
		rec.DestChain = sel.DestChain.ID
	}
	if sel.SourceToken != nil {
		rec.SourceToken = sel.SourceToken.Symbol
	}
	if sel.DestToken != nil {
		rec.DestToken = sel.DestToken.Symbol
		rec.ExpectedOut = amount.FromBaseUnits(review.Quote.ExpectedOutput, sel.DestToken.Decimals)
	}
	for _, s := range review.Quote.Steps {
		if s.RequestID != "" {
			rec.RequestID = s.RequestID
			break
		}
	}
	if exec != nil {
		rec.ExecutionID = exec.ID
		rec.TxHashes = append([]string(nil), exec.TxHashes...)
		rec.ApprovalHash = exec.ApprovalHash
	}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
	}

	if addErr := c.recorder.Add(rec); addErr != nil {
		c.logger.WithError(addErr).Warn("Failed to record swap history")
	}
}
