package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/shared"
)

// Repository persists permissions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates a permission row. A (user_id, module) pair is unique;
// granting twice reactivates the existing row instead of duplicating it.
func (r *Repository) Insert(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO permissions (user_id, module, description, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (user_id, module) DO UPDATE SET active = EXCLUDED.active, description = EXCLUDED.description, updated_at = NOW()
RETURNING id, user_id, module, description, active, created_at, updated_at`,
		p.UserID, p.Module, p.Description, p.Active)
	return scanPermission(row)
}

// Toggle flips the active flag and returns the updated row.
func (r *Repository) Toggle(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `UPDATE permissions SET active = NOT active, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, module, description, active, created_at, updated_at`, id)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// ListForUser returns every permission row for a user, active or not.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, module, description, active, created_at, updated_at
FROM permissions WHERE user_id = $1 ORDER BY module ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ActiveModules returns the module names the user is currently granted.
func (r *Repository) ActiveModules(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT module FROM permissions WHERE user_id = $1 AND active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	modules := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.UserID, &p.Module, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
