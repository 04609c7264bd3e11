package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"moleswap/pkg/history"
)

var (
	historyStatus string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past swaps",
	Long: `List swaps executed from this machine, newest first.

Examples:
  moleswap history
  moleswap history --status failed
  moleswap history --limit 5 --json`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status (completed, failed, settled, refunded)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of swaps to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	a, _, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	store, err := a.openHistory()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	records := store.List()
	if historyStatus != "" {
		records = store.ListByStatus(history.Status(strings.ToLower(historyStatus)))
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayHistory(records, store.FilePath())
}

func displayHistory(records []*history.Record, path string) {
	if len(records) == 0 {
		fmt.Println("\nNo swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 90) + "\n")

	for _, r := range records {
		fmt.Printf("  %s  %-10s  %s %s (%d) -> %s %s (%d)\n",
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			getColoredStatus(string(r.Status)),
			r.AmountIn, color.YellowString(r.SourceToken), r.SourceChain,
			r.ExpectedOut, color.YellowString(r.DestToken), r.DestChain)
		if h := r.LastHash(); h != "" {
			fmt.Printf("      tx: %s\n", color.HiBlackString(h))
		}
		if r.Error != "" {
			fmt.Printf("      error: %s\n", color.RedString(r.Error))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d swaps (%s)\n\n", len(records), path)
}
