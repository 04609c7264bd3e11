package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/cenkalti/backoff/v4"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Step kinds and item states reported by the API
const (
	StepKindTransaction = "transaction"
	StepKindSignature   = "signature"

	ItemStatusComplete   = "complete"
	ItemStatusIncomplete = "incomplete"
)

// Intent states returned by check and status endpoints
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusRefund  = "refund"
	StatusPending = "pending"
	StatusWaiting = "waiting"
)

var errCheckPending = errors.New("step not complete yet")

type statusResponse struct {
	Status     string   `json:"status"`
	Details    string   `json:"details,omitempty"`
	InTxHashes []string `json:"inTxHashes"`
	TxHashes   []string `json:"txHashes"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// Execute walks the quote's steps, sending each incomplete transaction item
// through signer and waiting for the service to confirm it. onProgress is
// called with a snapshot after every change.
func (c *Client) Execute(ctx context.Context, quote *types.Quote, signer wallet.Signer, onProgress func(types.Progress)) error {
	q := quote.Clone()
	var hashes []string
	progress := types.Progress{Steps: q.Steps, Fees: q.Fees, Details: q.Details}

	report := func() {
		if onProgress == nil {
			return
		}
		snapshot := progress
		snapshot.Steps = make([]types.Step, len(q.Steps))
		for i, s := range q.Steps {
			snapshot.Steps[i] = s.Clone()
		}
		snapshot.TxHashes = append([]string(nil), hashes...)
		onProgress(snapshot)
	}
	report()

	for i := range q.Steps {
		step := &q.Steps[i]
		progress.CurrentStep = step.ID

		switch step.Kind {
		case StepKindTransaction, "":
		case StepKindSignature:
			return fmt.Errorf("step %s: signature steps: %w", step.ID, ErrUnsupportedStep)
		default:
			return fmt.Errorf("step %s: kind %q: %w", step.ID, step.Kind, ErrUnsupportedStep)
		}

		for j := range step.Items {
			item := &step.Items[j]
			if item.Status == ItemStatusComplete {
				continue
			}

			tx, err := types.TxRequestFrom(item.Data)
			if err != nil {
				return fmt.Errorf("step %s: %w", step.ID, err)
			}
			if tx.ChainID != 0 {
				if err := wallet.EnsureChain(ctx, signer, tx.ChainID); err != nil {
					return fmt.Errorf("step %s: %w", step.ID, err)
				}
			}

			hash, err := signer.SendTransaction(ctx, tx)
			if err != nil {
				return fmt.Errorf("step %s: %w", step.ID, err)
			}
			hashes = append(hashes, hash.Hex())
			report()

			c.logger.WithFields(logrus.Fields{"step": step.ID, "tx": hash.Hex(), "chain_id": tx.ChainID}).Info("Step transaction sent")

			if item.Check != nil && item.Check.Endpoint != "" {
				if err := c.waitForCheck(ctx, item.Check); err != nil {
					return fmt.Errorf("step %s: %w", step.ID, err)
				}
			} else {
				receipt, err := wallet.NewWaiter(c.checkInterval, c.checkTimeout, c.logger).Wait(ctx, signer, hash)
				if err != nil {
					return fmt.Errorf("step %s: %w", step.ID, err)
				}
				if receipt.Status != ethtypes.ReceiptStatusSuccessful {
					return fmt.Errorf("step %s: transaction %s reverted", step.ID, hash.Hex())
				}
			}

			item.Status = ItemStatusComplete
			report()
		}
	}

	return nil
}

// waitForCheck polls a step's check endpoint until it reports a terminal state.
func (c *Client) waitForCheck(ctx context.Context, check *types.Check) error {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	method := strings.ToUpper(check.Method)
	if method == "" {
		method = http.MethodGet
	}

	op := func() error {
		var resp statusResponse
		if err := c.doJSON(ctx, method, check.Endpoint, nil, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusNotFound && apiErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		switch resp.Status {
		case StatusSuccess:
			return nil
		case StatusFailure, StatusRefund:
			msg := resp.Status
			if resp.Details != "" {
				msg += ": " + resp.Details
			}
			return backoff.Permanent(fmt.Errorf("swap %s", msg))
		default:
			return errCheckPending
		}
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.checkInterval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("step not confirmed within %s", c.checkTimeout)
		}
		return err
	}
	return nil
}
