package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"moleswap/config"
)

var rootCmd = &cobra.Command{
	Use:   "moleswap",
	Short: "A CLI for cross-chain swaps through the Relay and NEAR Intents aggregators",
	Long: `moleswap quotes and executes token swaps across EVM chains. Pick the pair,
review a live quote, approve the token if needed and let the aggregator route
the funds.

Examples:
  moleswap chains
  moleswap tokens --chain base
  moleswap quote 0.5 ETH to USDC --from-chain ethereum --to-chain base --watch
  moleswap swap 0.5 ETH on ethereum to USDC on base
  moleswap status <request-id> --watch
  moleswap history`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// setupLogging configures the standard logger from config and flags
func setupLogging(cfg *config.Config, verbose bool) *logrus.Logger {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
