package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/client"
	"github.com/xenking/salesdesk/internal/domain/product"
)

const bloomFPR = 0.001

// seedFile is the layout of a seed file.
type seedFile struct {
	Products []productJSON `json:"products"`
	Clients  []clientJSON  `json:"clients"`
	Users    []userJSON    `json:"users"`
}

type productJSON struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active *bool           `json:"active"`
}

type clientJSON struct {
	Code         string `json:"code"`
	BusinessName string `json:"business_name"`
	TaxID        string `json:"tax_id"`
	Kind         string `json:"kind"`
	District     string `json:"district"`
	CreditDays   int    `json:"credit_days"`
	Active       *bool  `json:"active"`
}

type userJSON struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Active   *bool  `json:"active"`
}

// readSeedFile parses path, which is gzip-compressed when it ends in .gz.
func readSeedFile(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var seed seedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &seed, nil
}

// dedupe drops every item whose key was already seen, keeping the first.
// A bloom filter flags possible repeats in one pass; only flagged keys are
// then tracked exactly, so memory stays proportional to the suspects.
func dedupe[T any](items []T, key func(T) string) (kept []T, dropped []string) {
	if len(items) == 0 {
		return items, nil
	}
	filter := bloom.NewWithEstimates(uint(len(items)), bloomFPR)
	suspects := make(map[string]bool)
	for _, it := range items {
		if k := key(it); filter.TestAndAddString(k) {
			suspects[k] = true
		}
	}

	seen := make(map[string]bool, len(suspects))
	kept = make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if suspects[k] {
			if seen[k] {
				dropped = append(dropped, k)
				continue
			}
			seen[k] = true
		}
		kept = append(kept, it)
	}
	return kept, dropped
}

// stableID derives the same ID for the same code on every run.
func stableID(kind, code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("salesdesk:"+kind+":"+code)).String()
}

func activeOr(v *bool) bool { return v == nil || *v }

func (p productJSON) domain() (product.Product, error) {
	switch {
	case p.Code == "":
		return product.Product{}, errors.New("product without code")
	case p.Price.IsNegative():
		return product.Product{}, errors.Errorf("product %s: negative price", p.Code)
	}
	return product.Product{
		ID:     stableID("product", p.Code),
		Code:   p.Code,
		Name:   p.Name,
		Price:  p.Price.Round(2),
		Active: activeOr(p.Active),
	}, nil
}

func (c clientJSON) domain() (client.Client, error) {
	kind := client.Kind(c.Kind)
	if kind == "" {
		kind = client.KindRetail
	}
	switch {
	case c.Code == "":
		return client.Client{}, errors.New("client without code")
	case !kind.Valid():
		return client.Client{}, errors.Errorf("client %s: unknown kind %q", c.Code, c.Kind)
	case c.CreditDays < 0:
		return client.Client{}, errors.Errorf("client %s: negative credit days", c.Code)
	}
	return client.Client{
		ID:           stableID("client", c.Code),
		Code:         c.Code,
		BusinessName: c.BusinessName,
		TaxID:        c.TaxID,
		Kind:         kind,
		District:     c.District,
		CreditDays:   c.CreditDays,
		Active:       activeOr(c.Active),
	}, nil
}

// domain hashes the user's password, falling back to defaultPassword.
func (u userJSON) domain(defaultPassword string) (auth.User, error) {
	role := auth.Role(u.Role)
	switch {
	case u.Username == "":
		return auth.User{}, errors.New("user without username")
	case !role.Valid():
		return auth.User{}, errors.Errorf("user %s: unknown role %q", u.Username, u.Role)
	}
	password := u.Password
	if password == "" {
		password = defaultPassword
	}
	if password == "" {
		return auth.User{}, errors.Errorf("user %s: no password and no default password", u.Username)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.User{}, errors.Wrapf(err, "hash password of %s", u.Username)
	}
	return auth.User{
		ID:           stableID("user", u.Username),
		Username:     u.Username,
		FullName:     u.FullName,
		Email:        u.Email,
		Role:         role,
		PasswordHash: hash,
		Active:       activeOr(u.Active),
	}, nil
}
