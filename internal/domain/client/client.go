// Package client describes the customers sales are made to.
package client

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested client does not exist.
var ErrNotFound = errors.New("client not found")

// Kind classifies a client's channel.
type Kind string

const (
	KindRetail        Kind = "minorista"
	KindWholesale     Kind = "mayorista"
	KindDistributor   Kind = "distribuidor"
	KindChain         Kind = "cadena"
	KindInstitutional Kind = "institucional"
)

// Valid reports whether k is a known client kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRetail, KindWholesale, KindDistributor, KindChain, KindInstitutional:
		return true
	}
	return false
}

// Client is a customer that can be billed.
type Client struct {
	ID           string
	Code         string
	BusinessName string
	TaxID        string
	Kind         Kind
	District     string
	CreditDays   int
	Active       bool
}

// Filter narrows client listings.
type Filter struct {
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// Repository defines read operations for clients.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Client, error)
	GetByID(ctx context.Context, id string) (*Client, error)
}
