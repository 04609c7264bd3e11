// Package parser reads swap commands typed on the command line.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// Command is a parsed swap instruction. Token and chain fields hold what the
// user typed; they are resolved against the chain directory later.
type Command struct {
	Amount    string
	FromToken string
	FromChain string
	ToToken   string
	ToChain   string
}

var (
	commandPattern = regexp.MustCompile(
		`(?i)^(?:swap\s+)?(\d+(?:\.\d+)?|\.\d+)\s+([a-z0-9$.]+)(?:\s+on\s+([a-z0-9-]+))?\s+(?:to|for|->)\s+([a-z0-9$.]+)(?:\s+on\s+([a-z0-9-]+))?$`)
	pairPattern = regexp.MustCompile(
		`(?i)^(?:swap\s+)?([a-z$][a-z0-9$.]*|0x[a-f0-9]+)(?:\s+on\s+([a-z0-9-]+))?\s+(?:to|for|->)\s+([a-z0-9$.]+)(?:\s+on\s+([a-z0-9-]+))?$`)
)

// ParseSwapCommand parses a swap command
// Examples:
//   - "swap 1 ETH to USDC"
//   - "0.5 eth on ethereum to usdc on base"
//   - "100 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 for ETH"
func ParseSwapCommand(command string) (*Command, error) {
	command = strings.Join(strings.Fields(command), " ")

	m := commandPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> [on <chain>] to <token> [on <chain>]' (e.g., '1 ETH to USDC')")
	}

	amt := m[1]
	if strings.HasPrefix(amt, ".") {
		amt = "0" + amt
	}
	return &Command{
		Amount:    amt,
		FromToken: normalizeToken(m[2]),
		FromChain: strings.ToLower(m[3]),
		ToToken:   normalizeToken(m[4]),
		ToChain:   strings.ToLower(m[5]),
	}, nil
}

// ParseArgs parses command arguments already split by the shell
func ParseArgs(args []string) (*Command, error) {
	return ParseSwapCommand(strings.Join(args, " "))
}

// ParsePairArgs parses arguments naming the tokens and chains without an
// amount, as used when the amount comes from a share of the balance.
// Examples:
//   - "ETH to USDC"
//   - "usdc on base to eth on arbitrum"
func ParsePairArgs(args []string) (*Command, error) {
	command := strings.Join(strings.Fields(strings.Join(args, " ")), " ")

	m := pairPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("invalid swap pair format. Expected: '<token> [on <chain>] to <token> [on <chain>]' (e.g., 'ETH to USDC')")
	}
	return &Command{
		FromToken: normalizeToken(m[1]),
		FromChain: strings.ToLower(m[2]),
		ToToken:   normalizeToken(m[3]),
		ToChain:   strings.ToLower(m[4]),
	}, nil
}

// Validate checks that a command has all required fields
func (c *Command) Validate() error {
	if c.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if c.FromToken == "" {
		return fmt.Errorf("source token is required")
	}
	if c.ToToken == "" {
		return fmt.Errorf("destination token is required")
	}
	return nil
}

// normalizeToken upper-cases symbols and leaves addresses untouched
func normalizeToken(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return s
	}
	return strings.ToUpper(s)
}
