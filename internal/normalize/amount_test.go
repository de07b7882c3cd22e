package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1000", 1000, true},
		{"1,000", 1000, true},
		{"¥1,234,567", 1234567, true},
		{"￥５５０，０００", 550000, true}, // full-width digits and comma
		{"$1,234.56", 1234.56, true},
		{"1.234,56", 1234.56, true}, // European convention
		{"1234,56", 1234.56, true},  // lone decimal comma
		{"1.000", 1000, true},       // lone dot grouping
		{"12.5", 12.5, true},
		{"-300", -300, true},
		{"JPY 48,400", 48400, true},
		{"total due", 0, false},
		{"", 0, false},
		{"-", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestCurrencyFromText(t *testing.T) {
	assert.Equal(t, "JPY", currencyFromText("¥48,400"))
	assert.Equal(t, "JPY", currencyFromText("￥１，０００"))
	assert.Equal(t, "USD", currencyFromText("$99.00"))
	assert.Equal(t, "EUR", currencyFromText("total: 12 EUR"))
	assert.Equal(t, "", currencyFromText("48,400"))
}
