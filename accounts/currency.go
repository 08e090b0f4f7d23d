/*
currency.go - Currency formatting

Pure, stateless utility collaborator. Uses decimal arithmetic so amounts
never pass through binary floating point on their way to display.
*/
package accounts

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount as "<CODE> 1,234,567.89": two decimal
// places, comma thousands separators. Negative amounts keep their sign in
// front of the number, not the code.
func FormatCurrency(amount decimal.Decimal, code string) string {
	fixed := amount.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	if negative {
		fixed = fixed[1:]
	}

	whole, frac, _ := strings.Cut(fixed, ".")
	grouped := groupThousands(whole)

	var b strings.Builder
	if code != "" {
		b.WriteString(code)
		b.WriteByte(' ')
	}
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(grouped)
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// ParseAmount converts a caller-supplied amount string to a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
