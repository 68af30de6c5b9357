package pricing

import (
	"github.com/shopspring/decimal"
)

// DefaultIVAPct is applied whenever a product or store carries no explicit rate.
var DefaultIVAPct = decimal.NewFromInt(21)

var oneHundred = decimal.NewFromInt(100)

// EffectiveIVAPct resolves the tax rate for a price computation. A nil or
// negative override falls back to the store default.
func EffectiveIVAPct(override *decimal.Decimal) decimal.Decimal {
	if override == nil || override.IsNegative() {
		return DefaultIVAPct
	}
	return *override
}

// FinalPrice computes the tax-inclusive unit price: base x (1 + pct/100).
// The result keeps full precision; rounding happens only at display time.
func FinalPrice(base decimal.Decimal, ivaPct *decimal.Decimal) decimal.Decimal {
	pct := EffectiveIVAPct(ivaPct)
	return base.Mul(oneHundred.Add(pct)).Div(oneHundred)
}

// BaseFromFinal inverts FinalPrice: final / (1 + pct/100).
func BaseFromFinal(final decimal.Decimal, ivaPct *decimal.Decimal) decimal.Decimal {
	pct := EffectiveIVAPct(ivaPct)
	return final.Mul(oneHundred).Div(oneHundred.Add(pct))
}

// LineTotal multiplies a tax-inclusive unit price by a quantity.
func LineTotal(unitFinal decimal.Decimal, quantity int) decimal.Decimal {
	return unitFinal.Mul(decimal.NewFromInt(int64(quantity)))
}

// ServiceCharge applies the store's service percentage to a subtotal.
func ServiceCharge(subtotal, pct decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(pct).Div(oneHundred)
}

// Totals carries the checkout summary amounts at full precision.
type Totals struct {
	Subtotal      decimal.Decimal
	ServiceCharge decimal.Decimal
	Total         decimal.Decimal
}

// Line is one cart row as seen by the totals computation.
type Line struct {
	UnitPriceBase decimal.Decimal
	IVAPct        *decimal.Decimal
	Quantity      int
}

// ComputeTotals sums tax-inclusive line totals, then applies the service
// charge on the subtotal. No intermediate rounding is performed.
func ComputeTotals(lines []Line, servicePct decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(LineTotal(FinalPrice(line.UnitPriceBase, line.IVAPct), line.Quantity))
	}
	charge := ServiceCharge(subtotal, servicePct)
	return Totals{
		Subtotal:      subtotal,
		ServiceCharge: charge,
		Total:         subtotal.Add(charge),
	}
}
