package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	sdk "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/directory"
	"moleswap/pkg/oneclick"
	"moleswap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
	listOneClick bool
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List tradable tokens",
	Long: `List the tokens tradable on a chain: the native currency first, then
featured tokens, then the remaining listings.

With --oneclick the NEAR Intents 1Click token list is shown instead, grouped by
blockchain.

Examples:
  moleswap tokens --chain base
  moleswap tokens --chain 8453 --symbol USD
  moleswap tokens --oneclick --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Chain id or name (defaults to the network's main chain)")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&listOneClick, "oneclick", false, "List the 1Click token catalogue")
}

func runListTokens(cmd *cobra.Command, args []string) {
	a, ctx, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if listOneClick {
		runListOneClickTokens(a, ctx)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	_, err = a.directory.Load(ctx)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chain, err := resolveChain(a, filterChain, a.defaultChainID())
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterTokens(directory.TokensForChain(chain), filterSymbol)
	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayChainTokens(chain, filtered)
}

func filterTokens(tokens []types.Token, symbol string) []types.Token {
	if symbol == "" {
		return tokens
	}
	var out []types.Token
	for _, t := range tokens {
		if strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
			out = append(out, t)
		}
	}
	return out
}

func displayChainTokens(chain *types.Chain, tokens []types.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                     TOKENS ON %s", strings.ToUpper(chain.Label()))
	fmt.Println(strings.Repeat("=", 90) + "\n")

	for _, t := range tokens {
		address := t.Address
		if t.Native {
			address = "native"
		}
		fmt.Printf("  %-10s  %2d decimals  %-28s  %s\n",
			color.YellowString(t.Symbol),
			t.Decimals,
			t.Name,
			color.HiBlackString(address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens on %s\n\n", len(tokens), chain.Label())
}

func runListOneClickTokens(a *app, ctx context.Context) {
	client := a.oneclick
	if client == nil {
		if a.cfg.OneClickJWT == "" {
			printError(fmt.Errorf("JWT token not found. Please set MOLESWAP_ONECLICK_JWT_TOKEN to list 1Click tokens"))
			os.Exit(1)
		}
		client = oneclick.NewClient(a.cfg.OneClickJWT, oneclick.WithBaseURL(a.cfg.OneClickBaseURL), oneclick.WithLogger(a.logger))
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching 1Click tokens..."
		s.Start()
	}
	tokens, err := client.Tokens(ctx)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := tokens
	if filterChain != "" {
		blockchain := filterChain
		if name, ok := oneclick.ChainNames[parseChainID(filterChain)]; ok {
			blockchain = name
		}
		var temp []sdk.TokenResponse
		for _, token := range filtered {
			if strings.EqualFold(string(token.GetBlockchain()), blockchain) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}
	if filterSymbol != "" {
		var temp []sdk.TokenResponse
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayOneClickTokens(filtered)
}

func displayOneClickTokens(tokens []sdk.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            1CLICK TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[string][]sdk.TokenResponse)
	for _, token := range tokens {
		chain := string(token.GetBlockchain())
		tokensByChain[chain] = append(tokensByChain[chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}
			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				float64(token.GetDecimals()),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}

// resolveChain finds a loaded chain by id or name, or the fallback id
func resolveChain(a *app, query string, fallback int64) (*types.Chain, error) {
	if query == "" {
		return a.directory.Chain(fallback)
	}
	return a.directory.FindChain(query)
}
