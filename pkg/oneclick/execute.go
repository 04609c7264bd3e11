package oneclick

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"moleswap/pkg/types"
	"moleswap/pkg/wallet"

	"github.com/cenkalti/backoff/v4"
	sdk "github.com/defuse-protocol/one-click-sdk-go"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var errSwapPending = errors.New("swap not settled yet")

// Execute sends the deposit, reports it to 1Click and waits for the swap to
// settle.
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

	var step *types.Step
	for i := range q.Steps {
		if q.Steps[i].ID == DepositStepID {
			step = &q.Steps[i]
		}
	}
	if step == nil || len(step.Items) == 0 {
		return fmt.Errorf("quote has no deposit address, request a new quote with a connected wallet")
	}
	depositAddress := step.RequestID
	progress.CurrentStep = step.ID
	report()

	item := &step.Items[0]
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

	log := c.logger.WithFields(logrus.Fields{"deposit_address": depositAddress, "tx": hash.Hex()})
	log.Info("Deposit sent")

	receipt, err := wallet.NewWaiter(c.interval, c.timeout, c.logger).Wait(ctx, signer, hash)
	if err != nil {
		return fmt.Errorf("deposit %s: %w", hash.Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("deposit transaction %s reverted", hash.Hex())
	}

	// Submitting the hash only speeds up detection; the deposit is already on chain
	if err := c.SubmitDeposit(ctx, depositAddress, hash.Hex()); err != nil {
		log.WithError(err).Warn("Failed to submit deposit hash")
	}

	item.Status = "complete"
	report()

	status, err := c.waitForSettlement(ctx, depositAddress)
	if err != nil {
		return err
	}
	if len(status.TxHashes) > 0 {
		hashes = append(hashes, status.TxHashes...)
	}
	report()
	return nil
}

// SubmitDeposit tells 1Click which transaction funded depositAddress
func (c *Client) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := sdk.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.authorize(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("failed to submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return nil
}

// GetStatus returns the state of the swap funded through depositAddress
func (c *Client) GetStatus(ctx context.Context, depositAddress string) (*types.SwapStatus, error) {
	if depositAddress == "" {
		return nil, fmt.Errorf("deposit address is required")
	}

	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.authorize(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, apiError("failed to get status", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	status := &types.SwapStatus{
		RequestID: depositAddress,
		Status:    string(resp.GetStatus()),
		UpdatedAt: resp.GetUpdatedAt().Unix(),
	}

	details := resp.GetSwapDetails()
	for _, tx := range details.GetOriginChainTxHashes() {
		if h := tx.GetHash(); h != "" {
			status.InHashes = append(status.InHashes, h)
		}
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		if h := tx.GetHash(); h != "" {
			status.TxHashes = append(status.TxHashes, h)
		}
	}
	return status, nil
}

// IsTerminal reports whether a 1Click status is final
func IsTerminal(status string) bool {
	switch strings.ToUpper(status) {
	case StatusSuccess, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

func (c *Client) waitForSettlement(ctx context.Context, depositAddress string) (*types.SwapStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var final *types.SwapStatus
	op := func() error {
		status, err := c.GetStatus(ctx, depositAddress)
		if err != nil {
			return err
		}
		switch strings.ToUpper(status.Status) {
		case StatusSuccess:
			final = status
			return nil
		case StatusRefunded, StatusFailed:
			return backoff.Permanent(fmt.Errorf("swap %s: %s", strings.ToLower(status.Status), depositAddress))
		default:
			return errSwapPending
		}
	}
	notify := func(err error, next time.Duration) {
		c.logger.WithFields(logrus.Fields{"deposit_address": depositAddress, "next": next}).Debugf("Waiting for settlement: %v", err)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.interval), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errSwapPending) {
			return nil, fmt.Errorf("swap did not settle within %s: %w", c.timeout, err)
		}
		return nil, err
	}
	return final, nil
}
