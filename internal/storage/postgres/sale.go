package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/salesdesk/internal/domain/sale"
)

const (
	saleColumns = `id, number, client_id, seller_id, status, document_type, payment_type,
		subtotal, discount, tax, total, payment_due, delivery_address, notes, created_at`

	insertSaleSQL = `INSERT INTO sales (` + saleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getSaleByIDSQL     = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	getSaleByNumberSQL = `SELECT ` + saleColumns + ` FROM sales WHERE number = $1`

	saleLinesSQL = `SELECT sale_id, product_id, quantity, unit_price, discount_percent, discount_amount, subtotal
		FROM sale_lines WHERE sale_id = ANY($1) ORDER BY sale_id, position`

	lastSaleNumberSQL = `SELECT coalesce(max(number), '') FROM sales WHERE number LIKE $1 || '%'`

	updateSaleStatusSQL = `UPDATE sales SET status = $2 WHERE id = $1`

	uniqueViolation = "23505"
)

var saleLineColumns = []string{
	"sale_id", "position", "product_id", "quantity", "unit_price",
	"discount_percent", "discount_amount", "subtotal",
}

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Create persists a sale and its lines in one transaction.
func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertSaleSQL,
			s.ID, s.Number, s.ClientID, s.SellerID, s.Status, s.DocumentType, s.PaymentType,
			s.Subtotal, s.Discount, s.Tax, s.Total, s.PaymentDue, s.DeliveryAddress, s.Notes, s.CreatedAt,
		)
		if err != nil {
			return err
		}

		_, err = tx.CopyFrom(ctx, pgx.Identifier{"sale_lines"}, saleLineColumns,
			pgx.CopyFromSlice(len(s.Lines), func(i int) ([]any, error) {
				l := s.Lines[i]
				return []any{
					s.ID, i, l.ProductID, l.Quantity, l.UnitPrice,
					l.DiscountPercent, l.DiscountAmount, l.Subtotal,
				}, nil
			}),
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "sales_number_key" {
			return sale.ErrDuplicateNumber
		}
		return fmt.Errorf("creating sale %q: %w", s.Number, err)
	}
	return nil
}

// Get returns a sale with its lines.
func (r *SaleRepository) Get(ctx context.Context, id string) (*sale.Sale, error) {
	return r.one(ctx, getSaleByIDSQL, id)
}

// GetByNumber returns a sale with its lines by document number.
func (r *SaleRepository) GetByNumber(ctx context.Context, number string) (*sale.Sale, error) {
	return r.one(ctx, getSaleByNumberSQL, number)
}

func (r *SaleRepository) one(ctx context.Context, query, arg string) (*sale.Sale, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting sale %q: %w", arg, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("getting sale %q: %w", arg, err)
	}

	sales := []sale.Sale{s}
	if err := r.attachLines(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// List returns a page of sales, newest first, and the total match count.
func (r *SaleRepository) List(ctx context.Context, f sale.Filter) ([]sale.Sale, int, error) {
	where, args := saleWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting sales: %w", err)
	}

	query, args := page(`SELECT `+saleColumns+` FROM sales`+where+` ORDER BY created_at DESC, number DESC`, args, f.Offset, f.Limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sales: %w", err)
	}
	sales, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sales: %w", err)
	}
	if err := r.attachLines(ctx, sales); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func saleWhere(f sale.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	where := ""
	for i, c := range conds {
		if i == 0 {
			where = " WHERE " + c
			continue
		}
		where += " AND " + c
	}
	return where, args
}

func (r *SaleRepository) attachLines(ctx context.Context, sales []sale.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	index := make(map[string]int, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		index[s.ID] = i
	}

	rows, err := r.pool.Query(ctx, saleLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("getting sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID string
			l      sale.Line
		)
		if err := rows.Scan(&saleID, &l.ProductID, &l.Quantity, &l.UnitPrice,
			&l.DiscountPercent, &l.DiscountAmount, &l.Subtotal); err != nil {
			return fmt.Errorf("scanning sale line: %w", err)
		}
		i := index[saleID]
		sales[i].Lines = append(sales[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("getting sale lines: %w", err)
	}
	return nil
}

// LastNumber returns the greatest sale number with the given prefix.
func (r *SaleRepository) LastNumber(ctx context.Context, prefix string) (string, error) {
	var last string
	if err := r.pool.QueryRow(ctx, lastSaleNumberSQL, prefix).Scan(&last); err != nil {
		return "", fmt.Errorf("getting last sale number: %w", err)
	}
	return last, nil
}

// UpdateStatus sets the status of a sale.
func (r *SaleRepository) UpdateStatus(ctx context.Context, id string, status sale.Status) error {
	tag, err := r.pool.Exec(ctx, updateSaleStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating sale %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sale.ErrNotFound
	}
	return nil
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var s sale.Sale
	err := row.Scan(
		&s.ID, &s.Number, &s.ClientID, &s.SellerID, &s.Status, &s.DocumentType, &s.PaymentType,
		&s.Subtotal, &s.Discount, &s.Tax, &s.Total, &s.PaymentDue, &s.DeliveryAddress, &s.Notes, &s.CreatedAt,
	)
	return s, err
}
