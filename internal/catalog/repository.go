package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/platform/db"
	"github.com/gescom/gescom/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertPurchaseLine(ctx context.Context, line PurchaseLine) (PurchaseLine, error)
	GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error)
	UpdatePurchaseStatus(ctx context.Context, purchaseID int64, status PurchaseStatus) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (numero_achat, supplier_id, status, note, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id`, p.NumeroAchat, p.SupplierID, p.Status, p.Note, p.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPurchaseLine(ctx context.Context, line PurchaseLine) (PurchaseLine, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_lines (purchase_id, nom_service, quantite, prix_unitaire, total, date_commande, date_livraison, photos)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`, line.PurchaseID, line.ServiceName, line.Quantity, line.UnitPrice, line.Total, line.OrderDate, line.DeliveryDate, line.Photos).Scan(&line.ID)
	return line, err
}

// GetPurchaseForUpdate locks the purchase row for the rest of the
// transaction. Status transitions and the materialization guard both run
// under this lock.
func (r *txRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, numero_achat, supplier_id, status, note, created_by, created_at, updated_at
FROM purchases WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, err
	}
	return p, nil
}

func (r *txRepository) UpdatePurchaseStatus(ctx context.Context, purchaseID int64, status PurchaseStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchases SET status = $2, updated_at = NOW() WHERE id = $1`, purchaseID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertSupplier creates a supplier.
func (r *Repository) InsertSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, email, phone, address, services, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id, name, email, phone, address, services, active, created_at, updated_at`,
		s.Name, s.Email, s.Phone, s.Address, s.Services, s.Active)
	return scanSupplier(row)
}

// UpdateSupplier rewrites supplier fields.
func (r *Repository) UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `UPDATE suppliers
SET name = $2, email = $3, phone = $4, address = $5, services = $6, updated_at = NOW()
WHERE id = $1
RETURNING id, name, email, phone, address, services, active, created_at, updated_at`,
		s.ID, s.Name, s.Email, s.Phone, s.Address, s.Services)
	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return supplier, nil
}

// ToggleSupplier flips the active flag.
func (r *Repository) ToggleSupplier(ctx context.Context, id int64) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `UPDATE suppliers SET active = NOT active, updated_at = NOW()
WHERE id = $1
RETURNING id, name, email, phone, address, services, active, created_at, updated_at`, id)
	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return supplier, nil
}

// GetSupplier fetches one supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, email, phone, address, services, active, created_at, updated_at
FROM suppliers WHERE id = $1`, id)
	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return supplier, nil
}

// ListSuppliers returns all suppliers ordered by name.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, phone, address, services, active, created_at, updated_at
FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// GetPurchase fetches a purchase and its lines.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, numero_achat, supplier_id, status, note, created_by, created_at, updated_at
FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, err
	}
	lines, err := r.linesFor(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	p.Lines = lines
	return p, nil
}

// ListPurchases pages purchases by ascending id.
func (r *Repository) ListPurchases(ctx context.Context, cursor shared.Cursor) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, numero_achat, supplier_id, status, note, created_by, created_at, updated_at
FROM purchases WHERE id > $1 ORDER BY id ASC LIMIT $2`, cursor.AfterID, cursor.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

// ListPurchasesByService pages purchases carrying a line for the service.
func (r *Repository) ListPurchasesByService(ctx context.Context, service string, cursor shared.Cursor) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT p.id, p.numero_achat, p.supplier_id, p.status, p.note, p.created_by, p.created_at, p.updated_at
FROM purchases p
JOIN purchase_lines pl ON pl.purchase_id = p.id
WHERE pl.nom_service = $1 AND p.id > $2
ORDER BY p.id ASC
LIMIT $3`, service, cursor.AfterID, cursor.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

// GetPurchaseLine fetches a single line with its parent purchase status.
func (r *Repository) GetPurchaseLine(ctx context.Context, lineID int64) (PurchaseLine, PurchaseStatus, error) {
	var line PurchaseLine
	var status PurchaseStatus
	err := r.pool.QueryRow(ctx, `SELECT pl.id, pl.purchase_id, pl.nom_service, pl.quantite, pl.prix_unitaire, pl.total, pl.date_commande, pl.date_livraison, pl.photos, p.status
FROM purchase_lines pl
JOIN purchases p ON p.id = pl.purchase_id
WHERE pl.id = $1`, lineID).Scan(
		&line.ID, &line.PurchaseID, &line.ServiceName, &line.Quantity, &line.UnitPrice,
		&line.Total, &line.OrderDate, &line.DeliveryDate, &line.Photos, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseLine{}, "", shared.ErrNotFound
		}
		return PurchaseLine{}, "", err
	}
	return line, status, nil
}

func (r *Repository) linesFor(ctx context.Context, purchaseID int64) ([]PurchaseLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, nom_service, quantite, prix_unitaire, total, date_commande, date_livraison, photos
FROM purchase_lines WHERE purchase_id = $1 ORDER BY id ASC`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []PurchaseLine{}
	for rows.Next() {
		var line PurchaseLine
		if err := rows.Scan(&line.ID, &line.PurchaseID, &line.ServiceName, &line.Quantity, &line.UnitPrice,
			&line.Total, &line.OrderDate, &line.DeliveryDate, &line.Photos); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func collectPurchases(rows pgx.Rows) ([]Purchase, error) {
	purchases := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.Services, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.NumeroAchat, &p.SupplierID, &p.Status, &p.Note, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
