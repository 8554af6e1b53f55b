package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/salesdesk/internal/domain/auth"
)

const (
	userColumns = `id, username, full_name, email, role, password_hash, active`

	findUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	getUserByIDSQL        = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username) DO UPDATE SET full_name = EXCLUDED.full_name,
			email = EXCLUDED.email, role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash, active = EXCLUDED.active`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository implements auth.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByUsername looks up a user by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.one(ctx, findUserByUsernameSQL, username)
}

// GetByID looks up a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return r.one(ctx, getUserByIDSQL, id)
}

// Upsert inserts u or updates the user with the same username.
func (r *UserRepository) Upsert(ctx context.Context, u auth.User) error {
	_, err := r.pool.Exec(ctx, upsertUserSQL,
		u.ID, u.Username, u.FullName, u.Email, u.Role, u.PasswordHash, u.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Username, err)
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, query, arg string) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("finding user %q: %w", arg, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", arg, err)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.PasswordHash, &u.Active)
	return u, err
}
