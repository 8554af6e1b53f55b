package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Service authenticates operators.
type Service struct {
	users  Repository
	tokens *Tokens
}

// NewService creates an auth Service.
func NewService(users Repository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, errors.Wrap(err, "find user")
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Token{}, ErrInvalidCredentials
	}
	if !u.Active {
		return Token{}, ErrInactive
	}
	return s.tokens.Issue(u)
}

// Authenticate resolves a bearer token to its active user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "get user")
	}
	if !u.Active {
		return nil, ErrInactive
	}
	return u, nil
}
