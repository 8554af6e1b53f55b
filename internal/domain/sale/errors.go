package sale

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for sale validation and lookup.
var (
	ErrNotFound           = errors.New("sale not found")
	ErrDuplicateNumber    = errors.New("sale number already taken")
	ErrEmptyLines         = errors.New("at least one line required")
	ErrNoClient           = errors.New("client required")
	ErrInvalidPaymentType = errors.New("invalid payment type")
	ErrInvalidDocument    = errors.New("invalid document type")
	ErrInvalidDiscount    = errors.New("discount must not be negative")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ClientNotFoundError indicates the sale's client does not exist.
type ClientNotFoundError struct {
	ClientID string
}

func (e *ClientNotFoundError) Error() string {
	return fmt.Sprintf("client %s not found", e.ClientID)
}

// InvalidLineError indicates a line with a non-positive quantity or a
// negative price or discount.
type InvalidLineError struct {
	ProductID string
	Reason    string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("line for product %s: %s", e.ProductID, e.Reason)
}

// StatusError indicates an operation not allowed in the sale's current status.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sale cannot be %s in status %s", e.Op, e.Status)
}

// IsValidation reports whether err was caused by invalid input rather than an
// infrastructure failure.
func IsValidation(err error) bool {
	var (
		pnf *ProductNotFoundError
		cnf *ClientNotFoundError
		il  *InvalidLineError
		se  *StatusError
	)
	switch {
	case errors.As(err, &pnf), errors.As(err, &cnf), errors.As(err, &il), errors.As(err, &se):
		return true
	case errors.Is(err, ErrEmptyLines), errors.Is(err, ErrNoClient),
		errors.Is(err, ErrInvalidPaymentType), errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidDiscount):
		return true
	}
	return false
}
