package directory

import "fmt"

var explorers = map[int64]string{
	1:        "https://etherscan.io",
	8453:     "https://basescan.org",
	42161:    "https://arbiscan.io",
	10:       "https://optimistic.etherscan.io",
	137:      "https://polygonscan.com",
	56:       "https://bscscan.com",
	11155111: "https://sepolia.etherscan.io",
	84532:    "https://sepolia.basescan.org",
	421614:   "https://sepolia.arbiscan.io",
	11155420: "https://sepolia-optimism.etherscan.io",
	80002:    "https://amoy.polygonscan.com",
	97:       "https://testnet.bscscan.com",
}

// ExplorerTxURL returns a block explorer link for hash, or "" for unknown chains
func ExplorerTxURL(chainID int64, hash string) string {
	base, ok := explorers[chainID]
	if !ok || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}
