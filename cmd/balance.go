package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/amount"
	"moleswap/pkg/balance"
	"moleswap/pkg/directory"
	"moleswap/pkg/types"
)

var (
	balanceChain   string
	balanceToken   string
	balanceAddress string
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show wallet balances on a chain",
	Long: `Show the wallet's balance of every token listed on a chain, or of a single
token. Balances that cannot be read are shown as unavailable.

Examples:
  moleswap balance --chain base
  moleswap balance --chain ethereum --token USDC
  moleswap balance --chain 8453 --address 0x1234...abcd`,
	Run: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceChain, "chain", "", "Chain id or name (defaults to the network's main chain)")
	balanceCmd.Flags().StringVar(&balanceToken, "token", "", "Token symbol or address (default: all listed tokens)")
	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "Wallet address (default: configured wallet)")
}

type balanceRow struct {
	Symbol    string `json:"symbol"`
	Address   string `json:"address"`
	Balance   string `json:"balance,omitempty"`
	Available bool   `json:"available"`
}

func runBalance(cmd *cobra.Command, args []string) {
	a, ctx, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if _, err := a.directory.Load(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
	chain, err := resolveChain(a, balanceChain, a.defaultChainID())
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	owner := balanceAddress
	if owner == "" {
		owner = a.walletAddress(ctx)
	}
	if owner == "" {
		printError(fmt.Errorf("no wallet address: pass --address or configure wallet.private_key"))
		os.Exit(1)
	}

	tokens := directory.TokensForChain(chain)
	if balanceToken != "" {
		t, err := directory.FindToken(chain, balanceToken)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		tokens = []types.Token{*t}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = fmt.Sprintf(" Reading %d balances on %s...", len(tokens), chain.Label())
		s.Start()
	}

	var mu sync.Mutex
	results := make(map[string]balance.Result, len(tokens))
	a.balances.GetBalances(ctx, chain, owner, tokens, func(key string, res balance.Result) {
		mu.Lock()
		results[key] = res
		mu.Unlock()
	})
	if !a.jsonOutput {
		s.Stop()
	}

	rows := make([]balanceRow, 0, len(tokens))
	for _, t := range tokens {
		res := results[balance.Key(chain.ID, t.Address)]
		row := balanceRow{Symbol: t.Symbol, Address: t.Address, Available: res.Available}
		if res.Available {
			row.Balance = amount.FromBaseUnits(res.Value.String(), t.Decimals)
		}
		rows = append(rows, row)
	}

	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                  BALANCES ON %s", strings.ToUpper(chain.Label()))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Wallet: %s\n\n", color.CyanString(owner))
	for _, r := range rows {
		value := color.HiBlackString("unavailable")
		if r.Available {
			value = amount.FormatDisplay(r.Balance, 6)
		}
		fmt.Printf("  %-10s  %s\n", color.YellowString(r.Symbol), value)
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
