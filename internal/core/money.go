// Package core holds the domain model: money handling, currency codes,
// funding entities and their append-only contribution ledgers.
//
// Monetary values are carried as integer minor units (cents). Exchange rates
// stay float64; they only touch money through RoundCents, which pins every
// stored amount back to exact cents.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in minor units of some currency. The currency itself is
// tracked next to the amount by whoever owns it (events carry
// OriginalCurrency, entities a HomeCurrency).
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the major-unit value as float64 for display only.
// Calculations must stay in cents.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimals, e.g. "2800.00". Negative
// values occur only in derived figures (an overspent balance), never in
// stored events.
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted. Zero, negative and malformed inputs are rejected: stored event
// magnitudes are always positive.
//
// Examples:
//
//	ParseDecimalToCents("50")     -> 5000, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.346") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// RoundCents rounds a product of cents and a rate half away from zero back
// to whole cents.
func RoundCents(v float64) int64 {
	return int64(math.Round(v))
}

// FormatRate renders an exchange rate for display: four decimals below 1,
// two above, matching how rates are audited in the UI.
func FormatRate(rate float64) string {
	if rate <= 0 {
		return "0.00"
	}
	if rate < 1 {
		return strconv.FormatFloat(rate, 'f', 4, 64)
	}
	return strconv.FormatFloat(rate, 'f', 2, 64)
}
