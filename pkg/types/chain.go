package types

import "strings"

// VM families
const (
	VMTypeEVM = "evm"
	VMTypeSVM = "svm"
)

// NativeAddress is the sentinel address of a chain's native token.
const NativeAddress = "0x0000000000000000000000000000000000000000"

// NativeSVMAddress is the system program id Solana listings use for SOL.
const NativeSVMAddress = "11111111111111111111111111111111"

// IsNativeAddress reports whether addr is one of the spellings used for a
// chain's native token.
func IsNativeAddress(addr string) bool {
	switch strings.ToLower(strings.TrimSpace(addr)) {
	case "", NativeAddress, "native", "eth", "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee":
		return true
	}
	return false
}

// Currency describes a token as the chain metadata service lists it
type Currency struct {
	ID       string            `json:"id"`
	Symbol   string            `json:"symbol"`
	Name     string            `json:"name"`
	Address  string            `json:"address,omitempty"`
	Decimals int               `json:"decimals"`
	LogoURI  string            `json:"logoURI,omitempty"`
	Metadata *CurrencyMetadata `json:"metadata,omitempty"`
}

// CurrencyMetadata carries listing extras
type CurrencyMetadata struct {
	LogoURI  string `json:"logoURI,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// Logo returns the currency's logo, preferring listing metadata
func (c Currency) Logo() string {
	if c.Metadata != nil && c.Metadata.LogoURI != "" {
		return c.Metadata.LogoURI
	}
	return c.LogoURI
}

// Chain is a supported chain with its token listings
type Chain struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	DisplayName     string     `json:"displayName"`
	IconURL         string     `json:"iconUrl,omitempty"`
	LogoURL         string     `json:"logoUrl,omitempty"`
	VMType          string     `json:"vmType,omitempty"`
	Currency        *Currency  `json:"currency,omitempty"`
	FeaturedTokens  []Currency `json:"featuredTokens,omitempty"`
	ERC20Currencies []Currency `json:"erc20Currencies,omitempty"`
}

// Label returns the display name, falling back to the name
func (c *Chain) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// IsNative reports whether addr names this chain's native currency, either by
// one of the generic spellings or by the address the chain lists for it.
func (c *Chain) IsNative(addr string) bool {
	if IsNativeAddress(addr) {
		return true
	}
	addr = strings.TrimSpace(addr)
	if c == nil {
		return false
	}
	if c.Currency != nil && c.Currency.Address != "" && strings.EqualFold(addr, c.Currency.Address) {
		return true
	}
	return c.Family() == VMTypeSVM && addr == NativeSVMAddress
}

// Family returns the VM family, defaulting to evm
func (c *Chain) Family() string {
	if c.VMType == "" {
		return VMTypeEVM
	}
	return strings.ToLower(c.VMType)
}

// Token is a tradable token on a chain
type Token struct {
	ID       string `json:"id"`
	ChainID  int64  `json:"chainId"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
	Native   bool   `json:"native,omitempty"`
}

// Key returns the lower-cased address used for uniqueness within a chain
func (t *Token) Key() string {
	if t.Address != "" {
		return strings.ToLower(t.Address)
	}
	return strings.ToLower(t.ID)
}
