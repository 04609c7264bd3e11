package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moleswap/pkg/history"
	"moleswap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Check the status of a swap",
	Long: `Check the execution status of a swap by its request id (Relay) or deposit
address (1Click). Settled swaps are marked in the local history.

Examples:
  moleswap status 0x1234...abcd
  moleswap status 0x1234...abcd --watch
  moleswap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	requestID := args[0]

	a, ctx, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	store, err := a.openHistory()
	if err != nil {
		a.logger.WithError(err).Debug("Swap history unavailable")
		store = nil
	}

	if watchStatus {
		watchSwapStatus(ctx, a, store, requestID)
	} else {
		checkSwapStatus(ctx, a, store, requestID)
	}
}

func checkSwapStatus(ctx context.Context, a *app, store *history.Storage, requestID string) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	status, err := a.aggregator.GetStatus(ctx, requestID)
	if !a.jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	markSettled(store, status, a.logger)

	if a.jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status)
	}
}

func watchSwapStatus(ctx context.Context, a *app, store *history.Storage, requestID string) {
	if a.jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (Request: %s)\n", color.CyanString(requestID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := a.aggregator.GetStatus(ctx, requestID)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(status)
			if isTerminalStatus(status.Status) {
				markSettled(store, status, a.logger)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// markSettled records a final remote status on the matching history entry
func markSettled(store *history.Storage, status *types.SwapStatus, logger *logrus.Logger) {
	if store == nil || !isTerminalStatus(status.Status) {
		return
	}
	rec, ok := store.FindByRequestID(status.RequestID)
	if !ok {
		return
	}

	switch strings.ToLower(status.Status) {
	case "success":
		rec.Status = history.StatusSettled
	case "refund", "refunded":
		rec.Status = history.StatusRefunded
	default:
		rec.Status = history.StatusFailed
	}
	if len(status.TxHashes) > 0 {
		rec.TxHashes = mergeHashes(rec.TxHashes, status.TxHashes)
	}
	if err := store.Update(rec); err != nil {
		logger.WithError(err).Warn("Failed to update swap history")
	}
}

func mergeHashes(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, h := range have {
		seen[strings.ToLower(h)] = true
	}
	out := append([]string(nil), have...)
	for _, h := range add {
		if h != "" && !seen[strings.ToLower(h)] {
			seen[strings.ToLower(h)] = true
			out = append(out, h)
		}
	}
	return out
}

func displayStatus(status *types.SwapStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Request:         %s\n", color.CyanString(status.RequestID))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.UpdatedAt > 0 {
		fmt.Printf("  Last Updated:    %s\n", updatedAt(status.UpdatedAt).Format("2006-01-02 15:04:05"))
	}

	// Origin chain transactions (deposits)
	for _, hash := range status.InHashes {
		if hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}

	// Destination chain transactions (fills)
	for _, hash := range status.TxHashes {
		if hash != "" {
			fmt.Printf("  Fill Tx:         %s\n", color.HiBlackString(hash))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

// updatedAt accepts both second and millisecond timestamps
func updatedAt(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
