package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// ErrConfirmationTimeout is returned when a transaction is not mined in time.
var ErrConfirmationTimeout = errors.New("transaction not confirmed in time")

var errNotMined = errors.New("transaction not mined yet")

// WaitState is the state of a confirmation wait
type WaitState int

const (
	WaitIdle WaitState = iota
	WaitPending
	WaitConfirmed
	WaitTimedOut
	WaitCancelled
	WaitFailed
)

func (s WaitState) String() string {
	switch s {
	case WaitIdle:
		return "idle"
	case WaitPending:
		return "pending"
	case WaitConfirmed:
		return "confirmed"
	case WaitTimedOut:
		return "timed_out"
	case WaitCancelled:
		return "cancelled"
	case WaitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Waiter polls for a transaction receipt at a fixed interval until it is mined
// or the timeout elapses.
type Waiter struct {
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger

	mu       sync.Mutex
	state    WaitState
	attempts int
}

// NewWaiter creates a confirmation waiter
func NewWaiter(interval, timeout time.Duration, logger *logrus.Logger) *Waiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Waiter{interval: interval, timeout: timeout, logger: logger}
}

// State returns the current wait state
func (w *Waiter) State() WaitState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Attempts returns how many receipt lookups the last wait made
func (w *Waiter) Attempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func (w *Waiter) setState(s WaitState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Wait blocks until hash has a receipt with a block number.
func (w *Waiter) Wait(ctx context.Context, reader ReceiptReader, hash common.Hash) (*ethtypes.Receipt, error) {
	w.mu.Lock()
	w.state = WaitPending
	w.attempts = 0
	w.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var receipt *ethtypes.Receipt
	op := func() error {
		w.mu.Lock()
		w.attempts++
		w.mu.Unlock()

		r, err := reader.TransactionReceipt(waitCtx, hash)
		if err != nil {
			return err
		}
		if r == nil || r.BlockNumber == nil {
			return errNotMined
		}
		receipt = r
		return nil
	}
	notify := func(err error, next time.Duration) {
		w.logger.WithFields(logrus.Fields{"tx": hash.Hex(), "next": next}).Debugf("Waiting for receipt: %v", err)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.interval), waitCtx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		switch {
		case ctx.Err() != nil:
			w.setState(WaitCancelled)
			return nil, ctx.Err()
		case waitCtx.Err() != nil:
			w.setState(WaitTimedOut)
			return nil, fmt.Errorf("%w after %s", ErrConfirmationTimeout, w.timeout)
		default:
			w.setState(WaitFailed)
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}
	}

	w.setState(WaitConfirmed)
	return receipt, nil
}
