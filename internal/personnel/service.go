package personnel

import (
	"context"
	"fmt"
	"strings"

	"github.com/gescom/gescom/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, e Employee) (Employee, error)
	Update(ctx context.Context, e Employee) (Employee, error)
	Get(ctx context.Context, id int64) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
}

// Service manages the employee registry.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the personnel service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new employee.
type CreateInput struct {
	Name           string
	Phone          string
	Role           string
	CommissionRate float64
}

// Create registers an employee.
func (s *Service) Create(ctx context.Context, input CreateInput) (Employee, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Employee{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if input.CommissionRate < 0 || input.CommissionRate > 100 {
		return Employee{}, fmt.Errorf("%w: commission rate must be within 0-100", shared.ErrValidation)
	}
	return s.repo.Insert(ctx, Employee{
		Name:           input.Name,
		Phone:          strings.TrimSpace(input.Phone),
		Role:           strings.TrimSpace(input.Role),
		CommissionRate: input.CommissionRate,
		Active:         true,
	})
}

// UpdateInput describes an employee update. Changing the rate never touches
// commissions already derived; those keep their snapshot.
type UpdateInput struct {
	Name           string
	Phone          string
	Role           string
	CommissionRate float64
	Active         bool
}

// Update rewrites an employee record.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Employee, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Employee{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if input.CommissionRate < 0 || input.CommissionRate > 100 {
		return Employee{}, fmt.Errorf("%w: commission rate must be within 0-100", shared.ErrValidation)
	}
	return s.repo.Update(ctx, Employee{
		ID:             id,
		Name:           input.Name,
		Phone:          strings.TrimSpace(input.Phone),
		Role:           strings.TrimSpace(input.Role),
		CommissionRate: input.CommissionRate,
		Active:         input.Active,
	})
}

// Get fetches one employee.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// List returns the registry.
func (s *Service) List(ctx context.Context) ([]Employee, error) {
	return s.repo.List(ctx)
}

// RateFor returns the current commission rate for an active employee. The
// commission engine snapshots this value at sale creation time.
func (s *Service) RateFor(ctx context.Context, id int64) (float64, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !e.Active {
		return 0, fmt.Errorf("%w: employee %d inactive", shared.ErrValidation, id)
	}
	return e.CommissionRate, nil
}
