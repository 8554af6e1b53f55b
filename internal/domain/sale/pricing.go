package sale

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero

	// DefaultTaxRate is the sales tax (IGV) applied to a sale subtotal.
	DefaultTaxRate = decimal.RequireFromString("0.18")
)

// LineSubtotal prices one line: the unit price reduced by the percentage
// discount, times the quantity, minus the fixed discount. The result is
// floored at zero and rounded to 2 decimal places.
func LineSubtotal(l Line) decimal.Decimal {
	unit := l.UnitPrice.Mul(hundred.Sub(l.DiscountPercent)).Div(hundred)
	sub := unit.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.DiscountAmount)
	return floorAtZero(sub).Round(2)
}

// Totals holds the header amounts of a sale.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Price fills in every line subtotal and returns the header totals. Tax is
// applied to the subtotal, then the header discount is taken off the total,
// which is floored at zero.
func Price(lines []Line, discount, taxRate decimal.Decimal) Totals {
	subtotal := zero
	for i := range lines {
		lines[i].Subtotal = LineSubtotal(lines[i])
		subtotal = subtotal.Add(lines[i].Subtotal)
	}
	tax := subtotal.Mul(taxRate).Round(2)
	total := floorAtZero(subtotal.Add(tax).Sub(discount)).Round(2)

	return Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax,
		Total:    total,
	}
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
