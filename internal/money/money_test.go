package money

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantCode   string
		wantAmount float64
		wantOK     bool
	}{
		{"dollar prefix", "$5.00", "USD", 5.00, true},
		{"euro prefix", "€10.00", "EUR", 10.00, true},
		{"euro suffix", "10.00€", "EUR", 10.00, true},
		{"pound prefix", "£2.50", "GBP", 2.50, true},
		{"yen no decimals", "¥500", "JPY", 500, true},
		{"thousands separators", "$1,234.56", "USD", 1234.56, true},
		{"iso code suffix with space", "5.00 USD", "USD", 5.00, true},
		{"iso code prefix", "USD 12", "USD", 12, true},
		{"one decimal", "$3.5", "USD", 3.5, true},
		{"canadian over plain dollar", "CA$2.00", "CAD", 2.00, true},
		{"brazilian real over plain dollar", "R$9.90", "BRL", 9.90, true},
		{"taiwan dollar", "NT$75.00", "TWD", 75.00, true},
		{"won", "₩1,000", "KRW", 1000, true},
		{"embedded in text", "sent $5.00 thanks!", "USD", 5.00, true},
		{"decimal comma suffix is ambiguous", "5,00 €", "", 0, false},
		{"decimal comma prefix is ambiguous", "€1,00", "", 0, false},
		{"scan continues past bare code mention", "pay in USD: €10.00", "EUR", 10.00, true},
		{"no symbol", "hello chat", "", 0, false},
		{"symbol without amount", "just $ signs", "", 0, false},
		{"unmapped symbol", "¤9.99", "", 0, false},
		{"empty string", "", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, amount, ok := Extract(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.InDelta(t, tt.wantAmount, amount, 1e-9)
		})
	}
}

func TestExtractNeverPanics(t *testing.T) {
	inputs := []string{
		strings.Repeat("$", 100000),
		strings.Repeat("9", 100000),
		"$" + strings.Repeat("9,", 50000),
		"\x00\xff€",
		"€€€€€.....",
		"𝒳𝒴𝒵 ₩₩₩",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Extract(in) })
	}
}
