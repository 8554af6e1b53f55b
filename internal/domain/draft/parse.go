package draft

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ParseQuantity parses operator input for a quantity. Empty and non-positive
// input yield 1.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Err: errors.Errorf("%w: %q", ErrInvalidQuantity, s)}
	}
	if n <= 0 {
		return 1, nil
	}
	return n, nil
}

// ParsePrice parses an operator price override. Empty input yields a null
// decimal, meaning "use the catalog price". Negative amounts and fractions
// of a cent are rejected.
func ParsePrice(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !validPrice(d) {
		return decimal.NullDecimal{}, &ValidationError{Err: errors.Errorf("%w: %q", ErrInvalidPrice, s)}
	}
	return decimal.NewNullDecimal(d), nil
}

// validPrice reports whether d is a non-negative amount in whole cents.
func validPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Round(priceDecimals).Equal(d)
}
