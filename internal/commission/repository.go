package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/platform/db"
	"github.com/gescom/gescom/internal/shared"
)

// TxRepository exposes the mutations that must share a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Commission, error)
	Update(ctx context.Context, c Commission) error
}

// Repository persists commissions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository bound to the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const commissionColumns = `id, sale_id, sale_reference, beneficiary_id, rate_snapshot, commission_due, status, paid_amount, paid_at, created_at, updated_at`

// InsertIdempotent inserts the commission unless one already exists for the
// same sale, in which case the existing row is returned unchanged.
func (r *Repository) InsertIdempotent(ctx context.Context, c Commission) (Commission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO commissions (sale_id, sale_reference, beneficiary_id, rate_snapshot, commission_due, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sale_id) DO NOTHING
		RETURNING `+commissionColumns,
		c.SaleID, c.SaleReference, c.BeneficiaryID, c.RateSnapshot, c.CommissionDue, c.Status)
	inserted, err := scanCommission(row)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Commission{}, err
	}
	// Conflict path: the row already existed.
	return r.GetBySale(ctx, c.SaleID)
}

// Get fetches one commission by id.
func (r *Repository) Get(ctx context.Context, id int64) (Commission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id)
	return scanCommission(row)
}

// GetBySale fetches the commission derived from a sale.
func (r *Repository) GetBySale(ctx context.Context, saleID int64) (Commission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE sale_id = $1`, saleID)
	return scanCommission(row)
}

// List pages commissions by ascending id. A zero beneficiary lists all.
func (r *Repository) List(ctx context.Context, beneficiaryID int64, cursor shared.Cursor) ([]Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id > $1`
	args := []any{cursor.AfterID}
	if beneficiaryID != 0 {
		query += ` AND beneficiary_id = $2`
		args = append(args, beneficiaryID)
	}
	query += fmt.Sprintf(` ORDER BY id ASC LIMIT %d`, cursor.Limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SummaryFor recomputes aggregate totals for a beneficiary.
func (r *Repository) SummaryFor(ctx context.Context, beneficiaryID int64) (Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(commission_due), 0),
			COALESCE(SUM(paid_amount), 0),
			COALESCE(SUM(commission_due) FILTER (WHERE status = 'unpaid'), 0),
			COUNT(*)
		FROM commissions
		WHERE beneficiary_id = $1 AND status <> 'voided'`, beneficiaryID)
	s := Summary{BeneficiaryID: beneficiaryID}
	if err := row.Scan(&s.TotalDue, &s.TotalPaid, &s.TotalOutstanding, &s.Count); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// ListOrphans returns commissions whose sale no longer exists or was
// cancelled while the commission stayed unpaid. Used by the nightly scan.
func (r *Repository) ListOrphans(ctx context.Context, limit int) ([]Commission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.sale_id, c.sale_reference, c.beneficiary_id, c.rate_snapshot, c.commission_due, c.status, c.paid_amount, c.paid_at, c.created_at, c.updated_at
		FROM commissions c
		LEFT JOIN sales s ON s.id = c.sale_id
		WHERE c.status = 'unpaid' AND (s.id IS NULL OR s.status = 'cancelled')
		ORDER BY c.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Commission, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1 FOR UPDATE`, id)
	return scanCommission(row)
}

func (r *txRepository) Update(ctx context.Context, c Commission) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE commissions
		SET status = $2, paid_amount = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Status, c.PaidAmount, c.PaidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanCommission(row pgx.Row) (Commission, error) {
	var c Commission
	err := row.Scan(&c.ID, &c.SaleID, &c.SaleReference, &c.BeneficiaryID, &c.RateSnapshot, &c.CommissionDue, &c.Status, &c.PaidAmount, &c.PaidAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Commission{}, shared.ErrNotFound
	}
	if err != nil {
		return Commission{}, err
	}
	return c, nil
}
