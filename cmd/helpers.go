package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"moleswap/pkg/amount"
	"moleswap/pkg/balance"
	"moleswap/pkg/directory"
	"moleswap/pkg/parser"
	"moleswap/pkg/types"
)

// quoteWaitTimeout bounds how long a command waits for its first quote
const quoteWaitTimeout = 90 * time.Second

// parseChainID returns the numeric id in s, or 0
func parseChainID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// resolveSelection turns a parsed command and chain flags into a swap request.
// Flags win over chains named in the command; the destination chain defaults
// to the source chain.
func resolveSelection(ctx context.Context, a *app, c *parser.Command, fromFlag, toFlag, recipient string) (types.SwapRequest, error) {
	if _, err := a.directory.Load(ctx); err != nil {
		return types.SwapRequest{}, err
	}

	fromQuery := fromFlag
	if fromQuery == "" {
		fromQuery = c.FromChain
	}
	src, err := resolveChain(a, fromQuery, a.defaultChainID())
	if err != nil {
		return types.SwapRequest{}, err
	}

	toQuery := toFlag
	if toQuery == "" {
		toQuery = c.ToChain
	}
	dst, err := resolveChain(a, toQuery, src.ID)
	if err != nil {
		return types.SwapRequest{}, err
	}

	srcToken, err := directory.FindToken(src, c.FromToken)
	if err != nil {
		return types.SwapRequest{}, err
	}
	dstToken, err := directory.FindToken(dst, c.ToToken)
	if err != nil {
		return types.SwapRequest{}, err
	}

	if recipient != "" && !common.IsHexAddress(recipient) {
		return types.SwapRequest{}, fmt.Errorf("invalid recipient address '%s'", recipient)
	}

	return types.SwapRequest{
		SourceChain: src,
		SourceToken: srcToken,
		DestChain:   dst,
		DestToken:   dstToken,
		Amount:      c.Amount,
		User:        a.walletAddress(ctx),
		Recipient:   recipient,
	}, nil
}

func confirmPrompt(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED", "SETTLED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING", "WAITING", "KNOWN_DEPOSIT_TX":
		return color.YellowString(status)
	case "FAILED", "FAILURE", "REFUNDED", "REFUND":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}

// isTerminalStatus reports whether a remote status is final for either aggregator
func isTerminalStatus(status string) bool {
	switch strings.ToLower(status) {
	case "success", "failure", "failed", "refund", "refunded":
		return true
	}
	return false
}

// txLine renders a hash with its explorer link when known
func txLine(chainID int64, hash string) string {
	if url := directory.ExplorerTxURL(chainID, hash); url != "" {
		return color.CyanString(hash) + "\n                     " + color.HiBlackString(url)
	}
	return color.CyanString(hash)
}

// parseCommand parses swap arguments. With a percentage the arguments name
// only the pair and the amount is filled in from the balance later.
func parseCommand(args []string, percent string) (*parser.Command, amount.Share, error) {
	if percent == "" {
		c, err := parser.ParseArgs(args)
		return c, "", err
	}
	share, err := amount.ParseShare(percent)
	if err != nil {
		return nil, "", err
	}
	c, err := parser.ParsePairArgs(args)
	if err != nil {
		return nil, "", err
	}
	return c, share, nil
}

// balanceReader looks up a single token balance
type balanceReader interface {
	GetBalance(ctx context.Context, chain *types.Chain, wallet, token string) balance.Result
}

// sourceBalance reads the wallet's balance of the selected source token
func sourceBalance(ctx context.Context, r balanceReader, sel types.SwapRequest) (balance.Result, bool) {
	if sel.User == "" || sel.SourceChain == nil || sel.SourceToken == nil {
		return balance.Result{}, false
	}
	res := r.GetBalance(ctx, sel.SourceChain, sel.User, sel.SourceToken.Address)
	return res, res.Available && res.Value != nil
}

// applyShare sets the selection's amount to a share of the source balance
func applyShare(sel *types.SwapRequest, res balance.Result, ok bool, share amount.Share) error {
	if sel.User == "" {
		return errors.New("--percent needs a wallet: set MOLESWAP_WALLET_PRIVATE_KEY or wallet.private_key")
	}
	if !ok {
		return fmt.Errorf("%s balance on %s is unavailable", sel.SourceToken.Symbol, sel.SourceChain.Label())
	}
	amt, err := amount.OfBalance(res.Value.String(), sel.SourceToken.Decimals, share)
	if err != nil {
		return fmt.Errorf("cannot use %s of the %s balance: %w", shareLabel(share), sel.SourceToken.Symbol, err)
	}
	sel.Amount = amt
	return nil
}

func shareLabel(s amount.Share) string {
	if s == amount.ShareMax {
		return "max"
	}
	return string(s) + "%"
}

// balanceLabel renders a balance for display, or "" when it is unknown
func balanceLabel(res balance.Result, ok bool, token *types.Token) string {
	if !ok || token == nil {
		return ""
	}
	human := amount.FromBaseUnits(res.Value.String(), token.Decimals)
	return amount.FormatDisplay(human, 6) + " " + token.Symbol
}
