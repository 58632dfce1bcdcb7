package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateTax(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		subtotal string
		tax      string
		total    string
	}{
		{"gst 18 percent", "18", "120000", "21600", "141600"},
		{"hst 13 percent", "13", "199.99", "26", "225.99"},
		{"zero rate", "0", "500", "0", "500"},
		{"rounds half up", "5", "0.50", "0.03", "0.53"},
		{"tax and total rounded independently", "18", "1770", "318.6", "2088.6"},
	}
	for _, tc := range tests {
		tax, total := CalculateTax(decimal.RequireFromString(tc.rate), decimal.RequireFromString(tc.subtotal))
		if !tax.Equal(decimal.RequireFromString(tc.tax)) {
			t.Fatalf("%s: tax expected %s, got %s", tc.name, tc.tax, tax.String())
		}
		if !total.Equal(decimal.RequireFromString(tc.total)) {
			t.Fatalf("%s: total expected %s, got %s", tc.name, tc.total, total.String())
		}
	}
}
