// Package auth authenticates operators of the sales API and issues their
// bearer tokens.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors for authentication.
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInactive           = errors.New("user is inactive")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("insufficient permissions")
)

// Role is the job function of an operator.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "gerente"
	RoleSeller     Role = "vendedor"
	RoleWarehouse  Role = "almacenero"
	RoleLogistics  Role = "logistica"
	RoleAccountant Role = "contador"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSeller, RoleWarehouse, RoleLogistics, RoleAccountant:
		return true
	}
	return false
}

// CanSell reports whether operators with role r may create and cancel sales.
func (r Role) CanSell() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleSeller
}

// User is an operator account.
type User struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	Role         Role
	PasswordHash []byte
	Active       bool
}

// Repository provides user lookups.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
