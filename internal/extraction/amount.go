package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a number written in any common locale into a decimal.
//
// Only digits, commas, dots and a minus sign are kept. When both separators
// appear, the right-most one is the decimal point and the other is a
// thousands separator. A single comma is a decimal point. Several commas
// without a dot ("1,234,567") and several dots alone ("1.234.567") are
// rejected as ambiguous. The second result is false when no number can be read.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		}
		return -1
	}, raw)
	if !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = withDecimalSeparator(cleaned, ',', '.')
		} else {
			cleaned = withDecimalSeparator(cleaned, '.', ',')
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			return decimal.Zero, false
		}
		cleaned = withDecimalSeparator(cleaned, ',', 0)
	}

	if strings.LastIndexByte(cleaned, '-') > 0 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// withDecimalSeparator drops every thousands separator and every decimal
// separator but the last, which becomes a dot.
func withDecimalSeparator(s string, decimalSep, thousandsSep byte) string {
	last := strings.LastIndexByte(s, decimalSep)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == thousandsSep:
		case c == decimalSep && i == last:
			b.WriteByte('.')
		case c == decimalSep:
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatAmount renders an amount with two decimals, the form used in reports
// and history files. ParseAmount reads it back unchanged.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
