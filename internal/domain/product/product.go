package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item that can be sold.
type Product struct {
	ID     string
	Code   string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Filter narrows catalog listings. Zero values disable the corresponding
// condition.
type Filter struct {
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
