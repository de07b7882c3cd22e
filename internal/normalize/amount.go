package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// currencySymbols maps the symbols seen on invoices to ISO codes, used only
// when no currency entity was extracted.
var currencySymbols = map[rune]string{
	'¥': "JPY",
	'￥': "JPY",
	'$': "USD",
	'€': "EUR",
	'£': "GBP",
}

// ParseAmount reads a monetary value from extracted text, tolerating currency
// symbols, thousands separators, full-width digits, and both decimal-point
// and decimal-comma conventions. Returns false when no number can be read.
func ParseAmount(s string) (float64, bool) {
	s = width.Fold.String(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	// Keep digits, separators and sign; drop symbols, codes and spaces.
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	num := b.String()
	if num == "" || num == "-" {
		return 0, false
	}

	num = resolveSeparators(num)

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// resolveSeparators decides which of "." and "," is the decimal separator.
// When both appear the rightmost wins and the other is grouping; a lone comma
// is decimal only when it cannot be a thousands separator.
func resolveSeparators(num string) string {
	lastDot := strings.LastIndexByte(num, '.')
	lastComma := strings.LastIndexByte(num, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		}
	case lastComma >= 0:
		if isGrouping(num, ',') {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			num = strings.Replace(num, ",", ".", 1)
		}
	case lastDot >= 0:
		if isGrouping(num, '.') {
			num = strings.ReplaceAll(num, ".", "")
		}
	}
	return num
}

// isGrouping reports whether every separator-delimited group after the first
// has exactly three digits and the separator appears consistently, i.e. the
// separator is a thousands separator ("1,234,567") rather than a decimal
// mark ("1234,56"). A single trailing group of three is treated as grouping,
// matching how totals appear on invoices ("1,000" is a thousand, not 1.000).
func isGrouping(num string, sep byte) bool {
	groups := strings.Split(strings.TrimPrefix(num, "-"), string(sep))
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// currencyFromText infers a currency code from the symbols in raw mention
// text.
func currencyFromText(s string) string {
	for _, r := range s {
		if code, ok := currencySymbols[r]; ok {
			return code
		}
	}
	upper := strings.ToUpper(s)
	for _, code := range []string{"JPY", "USD", "EUR", "GBP"} {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return ""
}
