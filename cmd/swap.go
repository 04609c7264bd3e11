package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/directory"
	"moleswap/pkg/flow"
	"moleswap/pkg/swap"
	"moleswap/pkg/types"
)

var noConfirm bool

var swapCmd = &cobra.Command{
	Use:   "swap [amount] <source-token> to <dest-token>",
	Short: "Perform a token swap",
	Long: `Quote and execute a swap with the configured wallet. The quote is kept fresh
while you review it; ERC-20 inputs are approved first when the allowance is too
low.

IMPORTANT:
  - A wallet key must be configured (MOLESWAP_WALLET_PRIVATE_KEY)
  - Same-chain wraps always pay out to your own wallet
  - With --json there is no prompt, so --yes is required

Examples:
  # Cross-chain swap
  moleswap swap 0.5 ETH to USDC --from-chain ethereum --to-chain base

  # Chains inline
  moleswap swap 100 USDC on base to ETH on arbitrum

  # Half of the USDC balance
  moleswap swap USDC on base to ETH --percent 50

  # Skip the confirmation prompt
  moleswap swap 1 ETH to WETH --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain id or name")
	swapCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain id or name (default: source chain)")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (default: your wallet)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().StringVar(&amountPercent, "percent", "", "Use a share of the source balance as the amount: 20, 50 or max")
}

type swapOutput struct {
	ExecutionID  string   `json:"execution_id"`
	State        string   `json:"state"`
	ApprovalHash string   `json:"approval_hash,omitempty"`
	TxHashes     []string `json:"tx_hashes"`
	RequestID    string   `json:"request_id,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func runSwap(cmd *cobra.Command, args []string) {
	command, share, err := parseCommand(args, amountPercent)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a, ctx, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	prompt, err := needsPrompt(a.jsonOutput, noConfirm)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sel, err := resolveSelection(ctx, a, command, fromChain, toChain, recipientAddr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if sel.User == "" {
		printError(errors.New("no wallet configured: set MOLESWAP_WALLET_PRIVATE_KEY or wallet.private_key"))
		os.Exit(1)
	}
	bal, hasBal := sourceBalance(ctx, a.balances, sel)
	if share != "" {
		if err := applyShare(&sel, bal, hasBal, share); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	store, err := a.openHistory()
	if err != nil {
		a.logger.WithError(err).Warn("Swap history disabled")
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	setSuffix := func(text string) {
		s.Lock()
		s.Suffix = " " + text
		s.Unlock()
	}

	executor := a.newExecutor(swap.Hooks{
		OnState: func(st swap.State) {
			setSuffix(stateMessage(st))
		},
		OnStart: func() {
			setSuffix("Transaction submitted, waiting for the route to settle...")
		},
		OnProgress: func(p types.Progress) {
			a.logger.WithField("step", p.CurrentStep).WithField("txs", len(p.TxHashes)).Debug("Swap progress")
		},
	})

	opts := []flow.Option{flow.WithAggregatorName(a.aggregatorName()), flow.WithLogger(a.logger)}
	if store != nil {
		opts = append(opts, flow.WithRecorder(store))
	}
	manager := a.newQuoteManager()
	snaps := subscribe(manager)
	ctrl := flow.NewController(manager, executor, a.session, opts...)
	defer ctrl.Close()

	if _, err := ctrl.Select(ctx, sel); err != nil {
		printError(err)
		os.Exit(1)
	}

	if !a.jsonOutput {
		setSuffix("Fetching quote...")
		s.Start()
	}
	_, err = waitForQuote(ctx, snaps, a.quoteRetryNotice(s))
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	review, err := ctrl.Review()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !a.jsonOutput {
		displayQuote(review.Display, sel, manager.Snapshot(time.Now()), balanceLabel(bal, hasBal, sel.SourceToken))
	}

	if prompt {
		if !confirmPrompt("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}

		// The prompt may outlive the quote; pin the latest one
		for review, err = ctrl.Review(); errors.Is(err, flow.ErrNoQuote); review, err = ctrl.Review() {
			if _, err = waitForQuote(ctx, snaps, nil); err != nil {
				break
			}
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		color.HiBlack("  Executing quote for ~%s %s", review.Display.DestAmount, review.Display.DestToken)
	}

	if !a.jsonOutput {
		setSuffix("Preparing swap...")
		s.Start()
	}
	exec, err := ctrl.Submit(ctx)
	if !a.jsonOutput {
		s.Stop()
	}

	requestID := firstRequestID(review.Quote)
	if a.jsonOutput {
		out := swapOutput{RequestID: requestID, TxHashes: []string{}}
		if exec != nil {
			out.ExecutionID = exec.ID
			out.State = exec.State.String()
			out.ApprovalHash = exec.ApprovalHash
			out.TxHashes = append(out.TxHashes, exec.TxHashes...)
		}
		if err != nil {
			out.Error = err.Error()
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		if err != nil {
			os.Exit(1)
		}
		_ = ctrl.Confirm()
		return
	}

	if err != nil {
		color.Red("\nSwap failed: %s", ctrl.View().Message)
		if errors.Is(err, swap.ErrChainMismatch) {
			fmt.Println("Check that an RPC endpoint is configured for the source chain (rpc.<chainId>).")
		}
		os.Exit(1)
	}

	displayTransaction(exec, sel)
	if err := ctrl.Confirm(); err != nil {
		a.logger.WithError(err).Debug("Failed to confirm swap")
	}

	printSuccess(color.GreenString("Swap complete!"))
	if requestID != "" {
		fmt.Println("You can monitor the swap status using:")
		color.Cyan("  moleswap status %s\n", requestID)
	}
}

// needsPrompt reports whether the swap waits for an interactive confirmation.
// JSON output cannot prompt, so executing there requires --yes.
func needsPrompt(jsonOutput, yes bool) (bool, error) {
	switch {
	case yes:
		return false, nil
	case jsonOutput:
		return false, errors.New("--json requires --yes to execute a swap without a prompt")
	default:
		return true, nil
	}
}

func stateMessage(st swap.State) string {
	switch st {
	case swap.StateSwitchingChain:
		return "Switching wallet chain..."
	case swap.StateCheckingApproval:
		return "Checking token allowance..."
	case swap.StateApproving:
		return "Waiting for approval confirmation..."
	case swap.StateSubmitting:
		return "Submitting swap transaction..."
	default:
		return st.String()
	}
}

func displayTransaction(exec *swap.Execution, sel types.SwapRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  TRANSACTION INFO")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Execution:         %s\n", exec.ID)
	if exec.ApprovalHash != "" {
		fmt.Printf("  Approval Tx:       %s\n", txLine(sel.SourceChain.ID, exec.ApprovalHash))
	}
	for i, h := range exec.TxHashes {
		label := "Swap Tx:"
		if i < len(exec.TxHashes)-1 {
			label = "Step Tx:"
		}
		fmt.Printf("  %-18s %s\n", label, txLine(sel.SourceChain.ID, h))
	}
	if last := exec.LastHash(); last != "" && directory.ExplorerTxURL(sel.SourceChain.ID, last) == "" {
		color.HiBlack("  No explorer known for chain %d", sel.SourceChain.ID)
	}
	fmt.Printf("  Duration:          %s\n", exec.FinishedAt.Sub(exec.StartedAt).Round(time.Second))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func firstRequestID(q *types.Quote) string {
	if q == nil {
		return ""
	}
	for _, s := range q.Steps {
		if s.RequestID != "" {
			return s.RequestID
		}
	}
	return ""
}
