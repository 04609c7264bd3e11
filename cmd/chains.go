package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/directory"
	"moleswap/pkg/types"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	Long: `List the chains the swap service supports, with their native currency.

Examples:
  moleswap chains
  moleswap chains --json`,
	Run: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) {
	a, ctx, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Fetching supported chains..."
		s.Start()
	}

	chains, err := a.directory.Load(ctx)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayChains(chains)
}

func displayChains(chains []types.Chain) {
	if len(chains) == 0 {
		fmt.Println("\nNo chains available.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	for i := range chains {
		c := &chains[i]
		native := "-"
		if c.Currency != nil {
			native = c.Currency.Symbol
		}
		fmt.Printf("  %-10d  %-24s  %-6s  %s  %d tokens\n",
			c.ID,
			color.CyanString(c.Label()),
			c.Family(),
			color.YellowString(native),
			len(directory.TokensForChain(c)))
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("\nTotal: %d chains\n\n", len(chains))
}
