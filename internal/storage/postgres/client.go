package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/salesdesk/internal/domain/client"
)

const (
	clientColumns = `id, code, business_name, tax_id, kind, district, credit_days, active`

	getClientByIDSQL = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	upsertClientSQL = `INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET business_name = EXCLUDED.business_name,
			tax_id = EXCLUDED.tax_id, kind = EXCLUDED.kind, district = EXCLUDED.district,
			credit_days = EXCLUDED.credit_days, active = EXCLUDED.active`
)

var _ client.Repository = (*ClientRepository)(nil)

// ClientRepository implements client.Repository backed by PostgreSQL.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

// List returns clients ordered by business name.
func (r *ClientRepository) List(ctx context.Context, f client.Filter) ([]client.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE TRUE`
	var args []any
	if f.ActiveOnly {
		query += ` AND active`
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (business_name ILIKE $%d OR code ILIKE $%d OR tax_id ILIKE $%d)`, n, n, n)
	}
	query += ` ORDER BY business_name`
	query, args = page(query, args, f.Offset, f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	return pgx.CollectRows(rows, scanClient)
}

// GetByID returns a single client.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*client.Client, error) {
	rows, err := r.pool.Query(ctx, getClientByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}
	return &c, nil
}

// Upsert inserts c or updates the client with the same code.
func (r *ClientRepository) Upsert(ctx context.Context, c client.Client) error {
	_, err := r.pool.Exec(ctx, upsertClientSQL,
		c.ID, c.Code, c.BusinessName, c.TaxID, c.Kind, c.District, c.CreditDays, c.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting client %q: %w", c.Code, err)
	}
	return nil
}

func scanClient(row pgx.CollectableRow) (client.Client, error) {
	var c client.Client
	err := row.Scan(&c.ID, &c.Code, &c.BusinessName, &c.TaxID, &c.Kind, &c.District, &c.CreditDays, &c.Active)
	return c, err
}
