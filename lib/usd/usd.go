// Package usd renders dollar amounts for API payloads.
package usd

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var suffixes = []struct {
	threshold decimal.Decimal
	suffix    string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// Format renders v with cent precision, e.g. "$1,234.56".
func Format(v decimal.Decimal) string {
	cents := v.Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// Compact renders v scaled to the largest fitting suffix, e.g. "$1.50B".
// Values under a thousand are rendered like Format.
func Compact(v decimal.Decimal) string {
	for _, s := range suffixes {
		if v.GreaterThanOrEqual(s.threshold) {
			return Format(v.Div(s.threshold)) + s.suffix
		}
	}
	return Format(v)
}
