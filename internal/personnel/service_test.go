package personnel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	employees map[int64]Employee
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, employees: map[int64]Employee{}}
}

func (m *memoryRepo) Insert(_ context.Context, e Employee) (Employee, error) {
	e.ID = m.nextID
	m.nextID++
	m.employees[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Update(_ context.Context, e Employee) (Employee, error) {
	if _, ok := m.employees[e.ID]; !ok {
		return Employee{}, shared.ErrNotFound
	}
	m.employees[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return Employee{}, shared.ErrNotFound
	}
	return e, nil
}

func (m *memoryRepo) List(_ context.Context) ([]Employee, error) {
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	return out, nil
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "   ", CommissionRate: 5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Awa", CommissionRate: 101})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: "Awa", CommissionRate: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	e, err := svc.Create(ctx, CreateInput{Name: "  Awa  ", Phone: " 77 ", CommissionRate: 10})
	require.NoError(t, err)
	require.Equal(t, "Awa", e.Name)
	require.Equal(t, "77", e.Phone)
	require.True(t, e.Active)
}

func TestRateForInactiveEmployee(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, CreateInput{Name: "Moussa", CommissionRate: 7.5})
	require.NoError(t, err)

	rate, err := svc.RateFor(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, 7.5, rate)

	_, err = svc.Update(ctx, e.ID, UpdateInput{Name: "Moussa", CommissionRate: 7.5, Active: false})
	require.NoError(t, err)

	_, err = svc.RateFor(ctx, e.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRateForUnknownEmployee(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.RateFor(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateDoesNotTouchSnapshots(t *testing.T) {
	// A rate change only affects commissions derived after it; the service
	// exposes the rate alone, derivation snapshots it elsewhere.
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	e, err := svc.Create(ctx, CreateInput{Name: "Fatou", CommissionRate: 5})
	require.NoError(t, err)

	before, err := svc.RateFor(ctx, e.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, e.ID, UpdateInput{Name: "Fatou", CommissionRate: 12.5, Active: true})
	require.NoError(t, err)

	after, err := svc.RateFor(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, 5.0, before)
	require.Equal(t, 12.5, after)
}
