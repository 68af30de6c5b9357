package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatARS renders an amount in Argentine peso display form, e.g. "$ 1.234,56".
// Amounts are rounded half-up to two decimals at this boundary only.
func FormatARS(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	negative := rounded.IsNegative()
	if negative {
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	var out strings.Builder
	out.WriteString("$ ")
	if negative {
		out.WriteByte('-')
	}
	out.WriteString(grouped.String())
	out.WriteByte(',')
	out.WriteString(fracPart)
	return out.String()
}
