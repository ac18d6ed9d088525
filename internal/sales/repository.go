package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/platform/db"
	"github.com/gescom/gescom/internal/shared"
)

// TxRepository exposes the writes that share a sale transaction.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	InsertLine(ctx context.Context, line SaleLine) (SaleLine, error)
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	InsertPayment(ctx context.Context, payment Payment) (Payment, error)
	UpdateSettlement(ctx context.Context, id int64, amountPaid float64, status Status) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// Repository persists sales in PostgreSQL.
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

const saleColumns = `id, reference, client_name, client_phone, client_address, total, status, beneficiary_id, amount_paid, created_at, updated_at`

// Get fetches one sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, err
	}
	sale.Lines, err = linesFor(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// List pages sales by ascending id, lines included.
func (r *Repository) List(ctx context.Context, cursor shared.Cursor) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT `+saleColumns+` FROM sales WHERE id > $1 ORDER BY id ASC LIMIT %d`, cursor.Limit), cursor.AfterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = linesFor(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListPayments returns the payment history of a sale, oldest first.
func (r *Repository) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, montant, commentaire, actor_id, created_at FROM payments WHERE sale_id = $1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Note, &p.ActorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SettlementDrift returns sales whose stored amount_paid disagrees with the
// sum of their payment rows. Used by the nightly reconciliation scan.
func (r *Repository) SettlementDrift(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id
		FROM sales s
		LEFT JOIN (SELECT sale_id, SUM(montant) AS paid FROM payments GROUP BY sale_id) p ON p.sale_id = s.id
		WHERE s.amount_paid <> COALESCE(p.paid, 0)
		ORDER BY s.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO sales (reference, client_name, client_phone, client_address, total, status, beneficiary_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+saleColumns,
		sale.Reference, sale.ClientName, sale.ClientPhone, sale.ClientAddress, sale.Total, sale.Status, sale.BeneficiaryID)
	return scanSale(row)
}

func (r *txRepository) InsertLine(ctx context.Context, line SaleLine) (SaleLine, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO sale_lines (sale_id, stock_id, quantite, prix_unitaire, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		line.SaleID, line.StockID, line.Quantity, line.UnitPrice, line.Subtotal)
	if err := row.Scan(&line.ID); err != nil {
		return SaleLine{}, err
	}
	return line, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	sale, err := scanSale(row)
	if err != nil {
		return Sale{}, err
	}
	sale.Lines, err = linesFor(ctx, r.tx, id)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `
		INSERT INTO payments (sale_id, montant, commentaire, actor_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		payment.SaleID, payment.Amount, payment.Note, payment.ActorID)
	if err := row.Scan(&payment.ID, &payment.CreatedAt); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func (r *txRepository) UpdateSettlement(ctx context.Context, id int64, amountPaid float64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET amount_paid = $2, status = $3, updated_at = NOW() WHERE id = $1`, id, amountPaid, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func linesFor(ctx context.Context, q querier, saleID int64) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, stock_id, quantite, prix_unitaire, subtotal FROM sale_lines WHERE sale_id = $1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleLine
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.StockID, &line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Reference, &s.ClientName, &s.ClientPhone, &s.ClientAddress, &s.Total, &s.Status, &s.BeneficiaryID, &s.AmountPaid, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.ErrNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}
