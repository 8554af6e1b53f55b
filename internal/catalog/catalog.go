// Package catalog caches the sales API's product catalog for the console.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/domain/product"
)

const (
	DefaultSize = 4096
	DefaultTTL  = 5 * time.Minute
)

// ErrInactive is returned by Resolve for a product withdrawn from sale.
var ErrInactive = errors.New("product is not for sale")

// Source fetches catalog data on behalf of a session token.
type Source interface {
	GetProduct(ctx context.Context, token, id string) (product.Product, error)
	ListProducts(ctx context.Context, token, search string) ([]product.Product, error)
	ListClients(ctx context.Context, token string) ([]client.Client, error)
}

// Listing is what the new-sale screen shows.
type Listing struct {
	Products []product.Product
	Clients  []client.Client
}

// Catalog is a read-through product cache shared by all sessions. Prices
// are not user specific, so entries are keyed by product ID only.
type Catalog struct {
	src      Source
	products *expirable.LRU[string, product.Product]
}

// New creates a Catalog holding at most size products for ttl each.
func New(src Source, size int, ttl time.Duration) *Catalog {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		src:      src,
		products: expirable.NewLRU[string, product.Product](size, nil, ttl),
	}
}

// Product returns the product with id, from cache when possible.
func (c *Catalog) Product(ctx context.Context, token, id string) (product.Product, error) {
	if p, ok := c.products.Get(id); ok {
		return p, nil
	}
	p, err := c.src.GetProduct(ctx, token, id)
	if err != nil {
		return product.Product{}, err
	}
	c.products.Add(p.ID, p)
	return p, nil
}

// Resolve fills the catalog price and, when blank, the display name of in.
// The product must exist and be active even when the operator overrides both
// price and name. Input without a product is returned as is for the draft to
// reject.
func (c *Catalog) Resolve(ctx context.Context, token string, in draft.LineInput) (draft.LineInput, error) {
	if in.ProductID == "" {
		return in, nil
	}
	p, err := c.Product(ctx, token, in.ProductID)
	if err != nil {
		return in, errors.Wrapf(err, "resolve product %s", in.ProductID)
	}
	if !p.Active {
		return in, errors.Wrap(ErrInactive, p.Code)
	}
	in.CatalogPrice = p.Price
	if in.DisplayName == "" {
		in.DisplayName = p.Name
	}
	return in, nil
}

// Warm loads active products and clients concurrently and primes the
// product cache.
func (c *Catalog) Warm(ctx context.Context, token string) (Listing, error) {
	var out Listing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := c.src.ListProducts(gctx, token, "")
		if err != nil {
			return err
		}
		for _, p := range ps {
			c.products.Add(p.ID, p)
		}
		out.Products = ps
		return nil
	})
	g.Go(func() error {
		cs, err := c.src.ListClients(gctx, token)
		if err != nil {
			return err
		}
		out.Clients = cs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Listing{}, errors.Wrap(err, "warm catalog")
	}
	return out, nil
}

// Len returns the number of cached products.
func (c *Catalog) Len() int { return c.products.Len() }

// Purge drops every cached product.
func (c *Catalog) Purge() { c.products.Purge() }
