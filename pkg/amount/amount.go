// Package amount converts between human decimal strings and integer base units.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human decimal amount into an integer base-unit string.
// The fractional part is padded or truncated to exactly decimals digits.
// A missing integer or fractional part reads as zero, so ".5" is "0.5" and
// "3." is "3". Malformed input returns "" so callers can treat it as not ready.
func ToBaseUnits(human string, decimals int) string {
	human = strings.TrimSpace(human)
	if human == "" || decimals < 0 {
		return ""
	}

	whole, frac, hasDot := strings.Cut(human, ".")
	if hasDot && strings.Contains(frac, ".") {
		return ""
	}
	if whole == "" && frac == "" {
		return ""
	}
	if !isDigits(whole) || !isDigits(frac) {
		return ""
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	} else {
		frac += strings.Repeat("0", decimals-len(frac))
	}

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return "0"
	}
	return digits
}

// FromBaseUnits formats base units as a human decimal string with trailing
// fractional zeros removed.
func FromBaseUnits(base string, decimals int) string {
	base = strings.TrimSpace(base)
	if base == "" || !isDigits(base) || decimals < 0 {
		return ""
	}
	base = strings.TrimLeft(base, "0")
	if decimals == 0 {
		if base == "" {
			return "0"
		}
		return base
	}

	if len(base) < decimals+1 {
		base = strings.Repeat("0", decimals+1-len(base)) + base
	}
	whole := base[:len(base)-decimals]
	frac := strings.TrimRight(base[len(base)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// IsPositive reports whether base is a well-formed, non-zero base-unit amount.
func IsPositive(base string) bool {
	v, ok := Parse(base)
	return ok && v.Sign() > 0
}

// Parse parses a base-unit string into a big.Int.
func Parse(base string) (*big.Int, bool) {
	if base == "" || !isDigits(base) {
		return nil, false
	}
	return new(big.Int).SetString(base, 10)
}

// Rate returns how many output tokens one input token buys.
func Rate(inBase string, inDecimals int, outBase string, outDecimals int) (decimal.Decimal, error) {
	in, err := decimal.NewFromString(inBase)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid input amount: %w", err)
	}
	out, err := decimal.NewFromString(outBase)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid output amount: %w", err)
	}
	if in.IsZero() {
		return decimal.Zero, fmt.Errorf("input amount is zero")
	}

	return out.Shift(-int32(outDecimals)).Div(in.Shift(-int32(inDecimals))), nil
}

// FormatUSD renders a dollar value with two decimals.
func FormatUSD(v decimal.Decimal) string {
	if v.LessThan(decimal.New(1, -2)) && v.IsPositive() {
		return "<$0.01"
	}
	return "$" + v.StringFixed(2)
}

// FormatDisplay trims a human amount to at most places fractional digits.
func FormatDisplay(human string, places int32) string {
	d, err := decimal.NewFromString(human)
	if err != nil {
		return human
	}
	return d.Truncate(places).String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Share is a preset fraction of a balance used as the swap amount.
type Share string

const (
	Share20  Share = "20"
	Share50  Share = "50"
	ShareMax Share = "max"
)

// ErrNoBalance is returned when a share of the balance comes to nothing.
var ErrNoBalance = errors.New("no balance to spend")

// ParseShare accepts 20, 50 or max, with or without a trailing percent sign.
func ParseShare(s string) (Share, error) {
	switch v := Share(strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "%"))); v {
	case Share20, Share50, ShareMax:
		return v, nil
	}
	return "", fmt.Errorf("invalid percentage %q: use 20, 50 or max", s)
}

// OfBalance returns share of a base-unit balance as a human amount with at
// most min(decimals, 6) fractional digits. Fixed shares round; max truncates
// so the amount never exceeds the balance.
func OfBalance(balanceBase string, decimals int, share Share) (string, error) {
	if balanceBase == "" || !isDigits(balanceBase) || decimals < 0 {
		return "", fmt.Errorf("invalid balance %q", balanceBase)
	}
	bal, err := decimal.NewFromString(balanceBase)
	if err != nil {
		return "", fmt.Errorf("invalid balance %q: %w", balanceBase, err)
	}
	bal = bal.Shift(-int32(decimals))
	places := int32(min(decimals, 6))

	var v decimal.Decimal
	switch share {
	case Share20:
		v = bal.Mul(decimal.New(2, -1)).Round(places)
	case Share50:
		v = bal.Mul(decimal.New(5, -1)).Round(places)
	case ShareMax:
		v = bal.Truncate(places)
	default:
		return "", fmt.Errorf("invalid percentage %q", share)
	}
	if !v.IsPositive() {
		return "", ErrNoBalance
	}
	return v.String(), nil
}
