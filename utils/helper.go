package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeName is the single identity normalization for party, product and
// organization names: lowercase + trimmed. Applied at write time (stored key)
// and at lookup time so round trips are stable.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Round2 rounds half-up to 2 decimal places. Applied once on totals, never
// per line item.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatQty renders a quantity without trailing zeros for operator-facing
// messages (50.0000 -> "50").
func FormatQty(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
