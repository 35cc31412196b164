package invoice

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is the Indian rupee sign
const DefaultCurrencySymbol = "₹"

var hundred = decimal.NewFromInt(100)

// Currency formats amounts as symbol + two decimals.
type Currency struct {
	Symbol string
}

// DefaultCurrency returns the rupee currency
func DefaultCurrency() Currency {
	return Currency{Symbol: DefaultCurrencySymbol}
}

// Format renders an amount with the symbol prefix, e.g. ₹500.00 or -₹12.50.
func (c Currency) Format(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-" + c.Symbol + amount.Neg().StringFixed(2)
	}
	return c.Symbol + amount.StringFixed(2)
}

// FormatRate renders a fractional rate as a percentage with at least one
// decimal place: 0.18 -> "18.0", 0.125 -> "12.5".
func FormatRate(rate decimal.Decimal) string {
	s := rate.Mul(hundred).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseAmount parses a money value. Thousands separators and a leading
// currency symbol are tolerated ("₹1,250.50").
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, DefaultCurrencySymbol)
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(strings.TrimSpace(s))
}

// ParseRate parses a tax rate given either as a fraction ("0.18") or as a
// percentage with a trailing sign ("18%").
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	pct, isPercent := strings.CutSuffix(s, "%")
	d, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil {
		return decimal.Zero, err
	}
	if isPercent {
		d = d.Div(hundred)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("rate cannot be negative")
	}
	return d, nil
}
