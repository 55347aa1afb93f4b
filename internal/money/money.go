// Package money pulls a (currency, amount) pair out of free-form purchase
// strings such as "$5.00", "CA$2.50" or "1.000,00 kr"-adjacent shapes the
// platforms emit on paid messages. Extraction is best effort: anything that
// does not resolve unambiguously comes back as not-ok and the caller sends
// the message through without monetary fields.
package money

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type symbol struct {
	text string
	code string
}

// Table of recognized symbols and codes. Longer symbols must win over their
// substrings ("CA$" before "$", "USD" before nothing), so the table is kept
// sorted by descending length and ties broken lexically to keep lookups
// deterministic.
var symbols = []symbol{
	{"USD", "USD"}, {"EUR", "EUR"}, {"GBP", "GBP"}, {"JPY", "JPY"},
	{"CAD", "CAD"}, {"AUD", "AUD"}, {"BRL", "BRL"}, {"MXN", "MXN"},
	{"INR", "INR"}, {"KRW", "KRW"}, {"SEK", "SEK"}, {"NOK", "NOK"},
	{"PLN", "PLN"}, {"CHF", "CHF"}, {"PHP", "PHP"}, {"TWD", "TWD"},
	{"HKD", "HKD"}, {"NZD", "NZD"}, {"SGD", "SGD"}, {"ARS", "ARS"},
	{"CLP", "CLP"}, {"COP", "COP"}, {"ZAR", "ZAR"},
	{"CA$", "CAD"}, {"AU$", "AUD"}, {"NZ$", "NZD"}, {"HK$", "HKD"},
	{"NT$", "TWD"}, {"MX$", "MXN"}, {"US$", "USD"}, {"SG$", "SGD"},
	{"R$", "BRL"}, {"zł", "PLN"}, {"kr", "SEK"},
	{"$", "USD"}, {"€", "EUR"}, {"£", "GBP"}, {"¥", "JPY"},
	{"₩", "KRW"}, {"₹", "INR"}, {"₱", "PHP"}, {"₺", "TRY"},
	{"₽", "RUB"}, {"₫", "VND"}, {"฿", "THB"}, {"₴", "UAH"},
	// Generic currency sign: recognized but deliberately unmapped, callers
	// get the not-ok result.
	{"¤", ""},
}

func init() {
	sort.SliceStable(symbols, func(i, j int) bool {
		if len(symbols[i].text) != len(symbols[j].text) {
			return len(symbols[i].text) > len(symbols[j].text)
		}
		return symbols[i].text < symbols[j].text
	})
}

// Amounts: optional thousands groups, at most two decimals. One optional
// space may sit between the symbol and the number in either ordering.
var (
	amountAfter  = regexp.MustCompile(`^ ?([0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)(?:\.([0-9]{1,2}))?`)
	amountBefore = regexp.MustCompile(`([0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)(?:\.([0-9]{1,2}))? ?$`)
)

// Extract scans text for a currency symbol with an adjacent amount, in
// either <symbol><amount> or <amount><symbol> ordering. It returns the ISO
// code and the amount, or ok=false when no symbol with an adjacent amount is
// found or the matched symbol has no code mapping. A symbol occurrence with
// no adjacent amount does not stop the scan.
func Extract(text string) (code string, amount float64, ok bool) {
	for _, s := range symbols {
		for from := 0; ; {
			i := strings.Index(text[from:], s.text)
			if i < 0 {
				break
			}
			i += from
			if s.code == "" {
				return "", 0, false
			}
			if amount, ok := adjacentAmount(text, i, i+len(s.text)); ok {
				return s.code, amount, true
			}
			from = i + len(s.text)
		}
	}
	return "", 0, false
}

// adjacentAmount looks for a complete amount next to the symbol occupying
// text[start:end]. A token that is only part of a larger digit run (more
// digits or a comma right outside the match, as in decimal-comma locales)
// is ambiguous and rejected.
func adjacentAmount(text string, start, end int) (float64, bool) {
	rest := text[end:]
	if m := amountAfter.FindStringSubmatch(rest); m != nil {
		if len(m[0]) == len(rest) || !partOfNumber(rest[len(m[0])]) {
			return parseDecimal(m[1], m[2]), true
		}
	}
	prefix := text[:start]
	// The amount regex is end-anchored; a bounded window keeps the scan cheap
	// no matter how much text precedes the symbol. No real amount is longer.
	window := prefix
	if len(window) > 32 {
		window = window[len(window)-32:]
	}
	if m := amountBefore.FindStringSubmatch(window); m != nil {
		at := len(prefix) - len(m[0])
		if at == 0 || !partOfNumber(prefix[at-1]) {
			return parseDecimal(m[1], m[2]), true
		}
	}
	return 0, false
}

func partOfNumber(c byte) bool {
	return c == ',' || (c >= '0' && c <= '9')
}

func parseDecimal(whole, frac string) float64 {
	whole = strings.ReplaceAll(whole, ",", "")
	if frac != "" {
		whole += "." + frac
	}
	v, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0
	}
	return v
}
