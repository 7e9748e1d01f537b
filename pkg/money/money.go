package money

import "github.com/shopspring/decimal"

// FromCents converts an integer cent amount to a decimal dollar amount.
func FromCents(cents int) decimal.Decimal {
	return decimal.NewFromInt(int64(cents)).Shift(-2)
}

// FormatCents renders a cent amount as a fixed two-decimal string, e.g. "12.50".
func FormatCents(cents int) string {
	return FromCents(cents).StringFixed(2)
}
