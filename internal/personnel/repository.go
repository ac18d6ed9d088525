package personnel

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom/gescom/internal/shared"
)

// Repository persists employees in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates an employee.
func (r *Repository) Insert(ctx context.Context, e Employee) (Employee, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO employees (name, phone, role, commission_rate, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id, name, phone, role, commission_rate, active, created_at, updated_at`,
		e.Name, e.Phone, e.Role, e.CommissionRate, e.Active)
	return scanEmployee(row)
}

// Update rewrites the mutable fields of an employee.
func (r *Repository) Update(ctx context.Context, e Employee) (Employee, error) {
	row := r.pool.QueryRow(ctx, `UPDATE employees
SET name = $2, phone = $3, role = $4, commission_rate = $5, active = $6, updated_at = NOW()
WHERE id = $1
RETURNING id, name, phone, role, commission_rate, active, created_at, updated_at`,
		e.ID, e.Name, e.Phone, e.Role, e.CommissionRate, e.Active)
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, shared.ErrNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

// Get fetches one employee by id.
func (r *Repository) Get(ctx context.Context, id int64) (Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, phone, role, commission_rate, active, created_at, updated_at
FROM employees WHERE id = $1`, id)
	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, shared.ErrNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

// List returns employees ordered by name.
func (r *Repository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, role, commission_rate, active, created_at, updated_at
FROM employees ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	employees := []Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Phone, &e.Role, &e.CommissionRate, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
