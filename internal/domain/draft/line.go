package draft

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the rate applied to a draft subtotal unless overridden
// with WithTaxRate.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// priceDecimals is the scale of every amount: prices, subtotals and tax.
const priceDecimals = 2

// LineID identifies a line for the lifetime of its draft. IDs are never
// reused, so removing by ID stays correct after other removals.
type LineID string

// Line is one product entry of a draft.
type Line struct {
	ID          LineID
	ProductID   string
	DisplayName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Total returns Quantity × UnitPrice.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineInput is an operator's request to add a line.
type LineInput struct {
	ProductID   string
	DisplayName string
	// Quantity defaults to 1 when non-positive.
	Quantity int
	// UnitPrice is the operator override. When null, CatalogPrice is used.
	UnitPrice    decimal.NullDecimal
	CatalogPrice decimal.Decimal
}

func (in LineInput) resolve() (Line, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return Line{}, &ValidationError{Err: ErrNoProduct}
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	price := in.CatalogPrice
	if in.UnitPrice.Valid {
		price = in.UnitPrice.Decimal
		if !validPrice(price) {
			return Line{}, &ValidationError{Err: errors.Errorf("%w: %s", ErrInvalidPrice, price)}
		}
	}
	if price.IsNegative() {
		return Line{}, &ValidationError{Err: ErrInvalidPrice}
	}
	return Line{
		ProductID:   in.ProductID,
		DisplayName: in.DisplayName,
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}

// Totals holds the aggregate amounts of a draft.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives the aggregates of lines: the subtotal is the sum of
// line totals, tax is applied once to the subtotal, and the total is their
// sum. Amounts are rounded to 2 decimal places.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	subtotal = subtotal.Round(priceDecimals)
	tax := subtotal.Mul(taxRate).Round(priceDecimals)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
