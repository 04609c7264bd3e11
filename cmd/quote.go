package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/quote"
	"moleswap/pkg/types"
)

var (
	fromChain     string
	toChain       string
	recipientAddr string
	watchQuote    bool
	amountPercent string
)

var quoteCmd = &cobra.Command{
	Use:   "quote [amount] <source-token> to <dest-token>",
	Short: "Get a swap quote",
	Long: `Fetch a quote for a swap without executing it. With --watch the quote is
refreshed before it expires until you press Ctrl+C.

Without a configured wallet the quote is priced for a placeholder account.
With --percent the amount is taken from the wallet's source token balance.

Examples:
  moleswap quote 0.5 ETH to USDC --from-chain ethereum --to-chain base
  moleswap quote 100 USDC on base to ETH on arbitrum --watch
  moleswap quote USDC on base to ETH --percent 50`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain id or name")
	quoteCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain id or name (default: source chain)")
	quoteCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (default: your wallet)")
	quoteCmd.Flags().BoolVarP(&watchQuote, "watch", "w", false, "Keep the quote fresh until interrupted")
	quoteCmd.Flags().StringVar(&amountPercent, "percent", "", "Use a share of the source balance as the amount: 20, 50 or max")
}

type quoteOutput struct {
	State         string `json:"state"`
	SourceAmount  string `json:"source_amount"`
	SourceToken   string `json:"source_token"`
	SourceChain   int64  `json:"source_chain"`
	DestAmount    string `json:"dest_amount"`
	DestToken     string `json:"dest_token"`
	DestChain     int64  `json:"dest_chain"`
	SourceUSD     string `json:"source_usd,omitempty"`
	DestUSD       string `json:"dest_usd,omitempty"`
	SourceBalance string `json:"source_balance,omitempty"`
	Rate          string `json:"rate"`
	Fee           string `json:"fee"`
	Route         string `json:"route"`
	EstimatedTime string `json:"estimated_time"`
	ExpiresIn     string `json:"expires_in"`
	Warning       string `json:"warning,omitempty"`
}

func runQuote(cmd *cobra.Command, args []string) {
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

	sel, err := resolveSelection(ctx, a, command, fromChain, toChain, recipientAddr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	bal, hasBal := sourceBalance(ctx, a.balances, sel)
	if share != "" {
		if err := applyShare(&sel, bal, hasBal, share); err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	balLabel := balanceLabel(bal, hasBal, sel.SourceToken)

	manager := a.newQuoteManager()
	defer manager.Stop()
	snaps := subscribe(manager)

	if !manager.Update(ctx, sel) {
		printError(fmt.Errorf("amount '%s' cannot be quoted", sel.Amount))
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	snap, err := waitForQuote(ctx, snaps, a.quoteRetryNotice(s))
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.jsonOutput {
		out := newQuoteOutput(snap, sel)
		out.SourceBalance = balLabel
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		if !watchQuote {
			return
		}
	} else {
		displayQuote(quote.Summarize(snap.Quote, snap.Request, sel.SourceToken, sel.DestToken), sel, snap, balLabel)
	}

	if watchQuote {
		watchQuotes(ctx, a.jsonOutput, sel, snaps, snap)
	}
}

// subscribe forwards snapshots to a buffered channel, dropping them when the
// reader falls behind
func subscribe(m *quote.Manager) <-chan quote.Snapshot {
	ch := make(chan quote.Snapshot, 64)
	m.Subscribe(func(s quote.Snapshot) {
		select {
		case ch <- s:
		default:
		}
	})
	return ch
}

// waitForQuote blocks until a fresh quote arrives, giving up after
// quoteWaitTimeout. Fetch errors are passed to onErr and the next refresh is
// awaited; a recipient warning ends the wait since every retry repeats it.
func waitForQuote(ctx context.Context, snaps <-chan quote.Snapshot, onErr func(error)) (quote.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteWaitTimeout)
	defer cancel()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return quote.Snapshot{}, fmt.Errorf("no quote received: %w", lastErr)
			}
			return quote.Snapshot{}, ctx.Err()
		case s := <-snaps:
			switch {
			case s.State == quote.StateFresh && s.Quote != nil:
				return s, nil
			case s.Warning != "" && s.Quote == nil && !s.Refreshing:
				return s, errors.New(s.Warning)
			case s.Err != nil && !errors.Is(s.Err, lastErr):
				lastErr = s.Err
				if onErr != nil {
					onErr(s.Err)
				}
			}
		}
	}
}

// quoteRetryNotice reports a failed fetch while waiting for the next refresh
func (a *app) quoteRetryNotice(s *spinner.Spinner) func(error) {
	return func(err error) {
		a.logger.WithError(err).Debug("Quote fetch failed, waiting for the next refresh")
		if a.jsonOutput {
			return
		}
		s.Lock()
		s.Suffix = " Quote failed, retrying..."
		s.Unlock()
	}
}

func watchQuotes(ctx context.Context, jsonOutput bool, sel types.SwapRequest, snaps <-chan quote.Snapshot, last quote.Snapshot) {
	if !jsonOutput {
		fmt.Println("Watching quote. Press Ctrl+C to stop.")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-snaps:
			changed := s.State != last.State || !s.UpdatedAt.Equal(last.UpdatedAt) || !errors.Is(s.Err, last.Err)
			last = s
			if !changed {
				continue
			}
			if jsonOutput {
				jsonData, _ := json.Marshal(newQuoteOutput(s, sel))
				fmt.Println(string(jsonData))
				continue
			}
			printQuoteLine(s, sel)
		}
	}
}

func printQuoteLine(s quote.Snapshot, sel types.SwapRequest) {
	ts := time.Now().Format("15:04:05")
	switch {
	case s.Err != nil:
		color.Red("[%s] quote failed: %v", ts, s.Err)
	case s.Quote == nil:
		fmt.Printf("[%s] %s\n", ts, stateLabel(s.State))
	default:
		d := quote.Summarize(s.Quote, s.Request, sel.SourceToken, sel.DestToken)
		fmt.Printf("[%s] %s  %s %s -> %s %s  (%s)\n", ts, stateLabel(s.State),
			d.SourceAmount, d.SourceToken, color.GreenString(d.DestAmount), d.DestToken, d.Rate)
	}
}

func stateLabel(s quote.State) string {
	switch s {
	case quote.StateFresh:
		return color.GreenString("fresh")
	case quote.StateStale:
		return color.YellowString("stale")
	case quote.StateFetching:
		return color.CyanString("fetching")
	default:
		return color.HiBlackString(s.String())
	}
}

func newQuoteOutput(s quote.Snapshot, sel types.SwapRequest) quoteOutput {
	out := quoteOutput{
		State:       s.State.String(),
		SourceChain: sel.SourceChain.ID,
		DestChain:   sel.DestChain.ID,
		ExpiresIn:   s.TTLLeft.Round(time.Second).String(),
		Warning:     s.Warning,
	}
	if s.Quote != nil {
		d := quote.Summarize(s.Quote, s.Request, sel.SourceToken, sel.DestToken)
		out.SourceAmount = d.SourceAmount
		out.SourceToken = d.SourceToken
		out.DestAmount = d.DestAmount
		out.DestToken = d.DestToken
		out.Rate = d.Rate
		out.Fee = d.Fee
		out.Route = d.Route
		out.EstimatedTime = d.EstimatedTime
		out.SourceUSD = d.SourceUSD
		out.DestUSD = d.DestUSD
	}
	return out
}

func displayQuote(d types.QuoteDisplay, sel types.SwapRequest, s quote.Snapshot, balance string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s on %s\n", d.SourceAmount, color.YellowString(d.SourceToken), sel.SourceChain.Label())
	fmt.Printf("  To:                ~%s %s on %s\n", color.GreenString(d.DestAmount), color.YellowString(d.DestToken), sel.DestChain.Label())
	if d.SourceUSD != "" || d.DestUSD != "" {
		fmt.Printf("  USD Value:         %s -> %s\n", orDash(d.SourceUSD), orDash(d.DestUSD))
	}
	if balance != "" {
		fmt.Printf("  Balance:           %s\n", balance)
	}
	fmt.Printf("  Rate:              %s\n", d.Rate)
	fmt.Printf("  Fee:               %s\n", d.Fee)
	fmt.Printf("  Route:             %s\n", d.Route)
	fmt.Printf("  Estimated Time:    %s\n", d.EstimatedTime)
	fmt.Printf("  Expires In:        %s\n", s.TTLLeft.Round(time.Second))
	if sel.Recipient != "" {
		fmt.Printf("  Recipient:         %s\n", color.CyanString(sel.Recipient))
	}
	if quote.IsWrap(sel) {
		color.Yellow("\n  Same-chain wrap: the recipient is your wallet.")
	}
	if s.Warning != "" {
		color.Yellow("\n  %s", s.Warning)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
