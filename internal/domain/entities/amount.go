package entities

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a decimal as an exact string. Whole non-zero values keep
// one fractional digit ("1.0", "-5.0"), zero is "0".
func FormatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseAmount parses a stored decimal string; empty input is zero
func ParseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// NormalizeAmount rewrites a decimal string (e.g. NUMERIC text with trailing zeros)
// into FormatAmount form. Unparseable input is returned unchanged.
func NormalizeAmount(s string) string {
	d, err := ParseAmount(s)
	if err != nil {
		return s
	}
	return FormatAmount(d)
}

// ScaleAmount converts a raw integer amount into human units: raw / 10^decimals
func ScaleAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
