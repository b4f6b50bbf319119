// Money parsing and display helpers. Amounts are float64 in the domain;
// decimal arithmetic is only used at the edges to avoid binary rounding surprises.

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when none is configured.
const DefaultCurrency = money.USD

// plainAmount is the machine form sent by number inputs and JSON bodies.
var plainAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseAmount is ParseAmountIn for DefaultCurrency.
func ParseAmount(s string) (float64, error) {
	return ParseAmountIn(s, DefaultCurrency)
}

// ParseAmountIn converts a user-entered amount to a float64 rounded to cents.
//
// Plain digits with an optional "." fraction are always accepted. Anything
// else is read with the currency's symbol and separators, as FormatAmount
// prints them: thousands groups must have three digits, and a separator
// that fits neither role is rejected rather than guessed. Negative values
// are rejected with ErrInvalidAmount.
//
// Examples (USD):
//
//	ParseAmountIn("12.34", "USD")     -> 12.34, nil
//	ParseAmountIn("$1,234.56", "USD") -> 1234.56, nil
//	ParseAmountIn("1,5", "USD")       -> ErrInvalidAmount
//	ParseAmountIn("12.345", "USD")    -> 12.35, nil (half away from zero)
func ParseAmountIn(s, currency string) (float64, error) {
	cur := lookupCurrency(currency)
	raw := strings.TrimSpace(s)
	s = raw
	if cur.Grapheme != "" {
		s = strings.TrimSuffix(strings.TrimPrefix(s, cur.Grapheme), cur.Grapheme)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !plainAmount.MatchString(s) {
		norm, err := normalizeAmount(s, cur.Decimal, cur.Thousand)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, raw, err)
		}
		s = norm
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, raw)
	}
	return d.Round(2).InexactFloat64(), nil
}

// normalizeAmount rewrites a locale-formatted amount into decimal's syntax.
func normalizeAmount(s, dec, thousand string) (string, error) {
	if dec == "" {
		dec = "."
	}
	intPart, frac, hasFrac := strings.Cut(s, dec)
	if strings.Contains(frac, dec) {
		return "", errors.New("more than one decimal separator")
	}
	if thousand != "" && thousand != dec {
		if strings.Contains(frac, thousand) {
			return "", fmt.Errorf("%q after the decimal separator", thousand)
		}
		if strings.Contains(intPart, thousand) {
			groups := strings.Split(strings.TrimPrefix(intPart, "-"), thousand)
			for i, g := range groups {
				if g == "" || len(g) > 3 || (i > 0 && len(g) != 3) {
					return "", fmt.Errorf("ambiguous %q: thousands groups need three digits", thousand)
				}
			}
			intPart = strings.ReplaceAll(intPart, thousand, "")
		}
	}
	if hasFrac {
		return intPart + "." + frac, nil
	}
	return intPart, nil
}

// ParseOptionalAmount is ParseAmount with blank input meaning 0, the way an
// untouched number field behaves.
func ParseOptionalAmount(s string) (float64, error) {
	return ParseOptionalAmountIn(s, DefaultCurrency)
}

// ParseOptionalAmountIn is ParseAmountIn with blank input meaning 0.
func ParseOptionalAmountIn(s, currency string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseAmountIn(s, currency)
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ValidCurrency reports whether code is an ISO currency known to go-money.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// FormatAmount renders v in the given currency, e.g. "$1,234.50".
// Unknown currency codes fall back to DefaultCurrency.
func FormatAmount(v float64, currency string) string {
	cur := lookupCurrency(currency)
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// FormatPercent renders a ratio with one decimal, e.g. "62.5%".
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func lookupCurrency(code string) *money.Currency {
	if cur := money.GetCurrency(code); cur != nil {
		return cur
	}
	return money.GetCurrency(DefaultCurrency)
}
