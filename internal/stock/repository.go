package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/catalog"
	"github.com/gescom/gescom/internal/platform/db"
	"github.com/gescom/gescom/internal/shared"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertItem(ctx context.Context, item StockItem) (int64, error)
	GetItemForUpdate(ctx context.Context, id int64) (StockItem, error)
	UpdateItemQuantity(ctx context.Context, id, quantity int64) error
	InsertMovement(ctx context.Context, m Movement) error
	SetUnavailable(ctx context.Context, id int64, unavailable bool) error
	PurchaseStatusForUpdate(ctx context.Context, purchaseLineID int64) (catalog.PurchaseStatus, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const itemColumns = `id, purchase_line_id, code_produit, nom_service, categorie, quantite, quantite_min, prix_vente, description, unavailable, created_at, updated_at`

func (r *txRepository) InsertItem(ctx context.Context, item StockItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_items (purchase_line_id, code_produit, nom_service, categorie, quantite, quantite_min, prix_vente, description, unavailable, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, NOW(), NOW())
RETURNING id`,
		item.PurchaseLineID, item.CodeProduit, item.ServiceName, item.Category,
		item.Quantity, item.QuantityMin, item.SalePrice, item.Description).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.ErrAlreadyMaterialized
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1 FOR UPDATE`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, shared.ErrNotFound
		}
		return StockItem{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItemQuantity(ctx context.Context, id, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_items SET quantite = $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (stock_id, type, quantite, reference, commentaire, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		m.StockID, m.Type, m.Quantity, m.Reference, m.Note, m.ActorID)
	return err
}

func (r *txRepository) SetUnavailable(ctx context.Context, id int64, unavailable bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_items SET unavailable = $2, updated_at = NOW() WHERE id = $1`, id, unavailable)
	return err
}

// PurchaseStatusForUpdate locks the purchase backing the line and returns
// its current status. Holding the lock until commit keeps a concurrent
// cancellation from landing between the status check and the item insert.
func (r *txRepository) PurchaseStatusForUpdate(ctx context.Context, purchaseLineID int64) (catalog.PurchaseStatus, error) {
	var status catalog.PurchaseStatus
	err := r.tx.QueryRow(ctx, `SELECT p.status FROM purchases p
JOIN purchase_lines pl ON pl.purchase_id = p.id
WHERE pl.id = $1
FOR UPDATE OF p`, purchaseLineID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return status, nil
}

// GetItem fetches one stock item.
func (r *Repository) GetItem(ctx context.Context, id int64) (StockItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, shared.ErrNotFound
		}
		return StockItem{}, err
	}
	return item, nil
}

// ListItems pages stock items by ascending id.
func (r *Repository) ListItems(ctx context.Context, cursor shared.Cursor) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		cursor.AfterID, cursor.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListMovements pages ledger entries in insertion order.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, stock_id, type, quantite, reference, commentaire, actor_id, created_at
FROM stock_movements
WHERE ($1 = 0 OR stock_id = $1) AND ($2 = '' OR type = $2) AND id > $3
ORDER BY id ASC
LIMIT $4`, filter.StockID, string(filter.Type), filter.Cursor.AfterID, filter.Cursor.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.StockID, &m.Type, &m.Quantity, &m.Reference, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// AnyMaterialized reports whether any line of the purchase backs a stock
// item. The catalog consults this before allowing cancellation.
func (r *Repository) AnyMaterialized(ctx context.Context, purchaseID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM stock_items si
JOIN purchase_lines pl ON pl.id = si.purchase_line_id
WHERE pl.purchase_id = $1)`, purchaseID).Scan(&exists)
	return exists, err
}

// MovementSum recomputes Σinbound − Σoutbound for a stock item straight
// from the ledger. The reconciliation job compares this against the
// balance column.
func (r *Repository) MovementSum(ctx context.Context, stockID int64) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN type = 'outbound_sale' THEN -quantite ELSE quantite END), 0)
FROM stock_movements WHERE stock_id = $1`, stockID).Scan(&sum)
	return sum, err
}

func scanItem(row pgx.Row) (StockItem, error) {
	var item StockItem
	err := row.Scan(&item.ID, &item.PurchaseLineID, &item.CodeProduit, &item.ServiceName, &item.Category,
		&item.Quantity, &item.QuantityMin, &item.SalePrice, &item.Description, &item.Unavailable,
		&item.CreatedAt, &item.UpdatedAt)
	return item, err
}
