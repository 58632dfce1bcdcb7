package utils

import (
	"github.com/shopspring/decimal"
)

// TaxResult is the outcome of applying a country's tax configuration to an
// order subtotal. Rate is a percentage (18 means 18%).
type TaxResult struct {
	Rate      decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	TaxType   string
}

var decimalOneHundred = decimal.NewFromInt(100)

// CalculateTax applies a percentage rate to a subtotal. Tax-exclusive:
// tax = subtotal * rate / 100, total = subtotal + tax, both rounded half-up
// to 2dp at the end.
func CalculateTax(rate decimal.Decimal, subtotal decimal.Decimal) (taxAmount decimal.Decimal, total decimal.Decimal) {
	taxAmount = Round2(subtotal.Mul(rate).Div(decimalOneHundred))
	total = Round2(subtotal.Add(taxAmount))
	return taxAmount, total
}
