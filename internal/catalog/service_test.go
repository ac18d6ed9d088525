package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/shared"
)

type memoryRepo struct {
	nextSupplierID int64
	nextPurchaseID int64
	nextLineID     int64
	suppliers      map[int64]*Supplier
	purchases      map[int64]*Purchase

	// ops records transaction boundaries and row locks so tests can assert
	// where a check runs relative to them.
	ops []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextSupplierID: 1, nextPurchaseID: 1, nextLineID: 1, suppliers: map[int64]*Supplier{}, purchases: map[int64]*Purchase{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.ops = append(m.ops, "txBegin")
	if err := fn(ctx, m); err != nil {
		return err
	}
	m.ops = append(m.ops, "txCommit")
	return nil
}

func (m *memoryRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return *s, nil
}

func (m *memoryRepo) ListSuppliers(_ context.Context) ([]Supplier, error) {
	var out []Supplier
	for id := int64(1); id < m.nextSupplierID; id++ {
		if s, ok := m.suppliers[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetPurchase(_ context.Context, id int64) (Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	return *p, nil
}

func (m *memoryRepo) ListPurchases(_ context.Context, cursor shared.Cursor) ([]Purchase, error) {
	var out []Purchase
	for id := cursor.AfterID + 1; id < m.nextPurchaseID; id++ {
		if p, ok := m.purchases[id]; ok {
			out = append(out, *p)
			if len(out) == cursor.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPurchasesByService(_ context.Context, service string, cursor shared.Cursor) ([]Purchase, error) {
	var out []Purchase
	for id := cursor.AfterID + 1; id < m.nextPurchaseID; id++ {
		p, ok := m.purchases[id]
		if !ok {
			continue
		}
		for _, line := range p.Lines {
			if line.ServiceName == service {
				out = append(out, *p)
				break
			}
		}
		if len(out) == cursor.Limit {
			break
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertSupplier(_ context.Context, s Supplier) (Supplier, error) {
	s.ID = m.nextSupplierID
	m.nextSupplierID++
	stored := s
	m.suppliers[s.ID] = &stored
	return s, nil
}

func (m *memoryRepo) UpdateSupplier(_ context.Context, s Supplier) (Supplier, error) {
	stored, ok := m.suppliers[s.ID]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	s.Active = stored.Active
	*stored = s
	return s, nil
}

func (m *memoryRepo) ToggleSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	s.Active = !s.Active
	return *s, nil
}

func (m *memoryRepo) InsertPurchase(_ context.Context, p Purchase) (int64, error) {
	p.ID = m.nextPurchaseID
	m.nextPurchaseID++
	stored := p
	m.purchases[p.ID] = &stored
	return p.ID, nil
}

func (m *memoryRepo) InsertPurchaseLine(_ context.Context, line PurchaseLine) (PurchaseLine, error) {
	line.ID = m.nextLineID
	m.nextLineID++
	p := m.purchases[line.PurchaseID]
	p.Lines = append(p.Lines, line)
	return line, nil
}

func (m *memoryRepo) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	m.ops = append(m.ops, "lockPurchase")
	return m.GetPurchase(ctx, id)
}

func (m *memoryRepo) UpdatePurchaseStatus(_ context.Context, purchaseID int64, status PurchaseStatus) error {
	p, ok := m.purchases[purchaseID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	return nil
}

type staticStock bool

func (s staticStock) AnyMaterialized(_ context.Context, _ int64) (bool, error) {
	return bool(s), nil
}

// trackedStock logs its reads into the repo's op sequence.
type trackedStock struct {
	repo         *memoryRepo
	materialized bool
}

func (s *trackedStock) AnyMaterialized(_ context.Context, _ int64) (bool, error) {
	s.repo.ops = append(s.repo.ops, "anyMaterialized")
	return s.materialized, nil
}

func newTestService(materialized bool) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, staticStock(materialized), nil), repo
}

func seedSupplier(t *testing.T, svc *Service) Supplier {
	t.Helper()
	supplier, err := svc.CreateSupplier(context.Background(), CreateSupplierInput{
		Name:     "Guinée Telecom",
		Services: []string{"Hosting", "Security"},
	})
	require.NoError(t, err)
	return supplier
}

func TestCreatePurchaseRecomputesTotals(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines: []PurchaseLineInput{
			{ServiceName: "Hosting", Quantity: 3, UnitPrice: 50},
			{ServiceName: "Security", Quantity: 2, UnitPrice: 120.5},
		},
	})
	require.NoError(t, err)
	require.Equal(t, PurchaseStatusOrdered, purchase.Status)
	require.NotEmpty(t, purchase.NumeroAchat)
	require.Len(t, purchase.Lines, 2)
	require.Equal(t, 150.0, purchase.Lines[0].Total)
	require.Equal(t, 241.0, purchase.Lines[1].Total)
}

func TestCreatePurchaseRejectsInactiveSupplier(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	_, err := svc.ToggleSupplier(context.Background(), supplier.ID)
	require.NoError(t, err)

	_, err = svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePurchaseRejectsBadLines(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	for _, line := range []PurchaseLineInput{
		{ServiceName: "Hosting", Quantity: 0, UnitPrice: 10},
		{ServiceName: "Hosting", Quantity: 1, UnitPrice: 0},
		{ServiceName: "", Quantity: 1, UnitPrice: 10},
		{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10, Photos: []string{"a", "b", "c", "d", "e"}},
	} {
		_, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
			SupplierID: supplier.ID,
			Lines:      []PurchaseLineInput{line},
		})
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestPurchaseStatusForwardOnly(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)

	purchase, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusPaid, 1)
	require.NoError(t, err)
	require.Equal(t, PurchaseStatusPaid, purchase.Status)

	// No going back.
	_, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusOrdered, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	purchase, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusReceived, 1)
	require.NoError(t, err)

	// Received is terminal except nothing.
	_, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusCancelled, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelBeforeTerminal(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)

	purchase, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusCancelled, 1)
	require.NoError(t, err)
	require.Equal(t, PurchaseStatusCancelled, purchase.Status)

	_, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusPaid, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelRejectedWhenMaterialized(t *testing.T) {
	svc, _ := newTestService(true)
	supplier := seedSupplier(t, svc)

	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)

	_, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusCancelled, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelChecksMaterializationUnderPurchaseLock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &trackedStock{repo: repo, materialized: true}, nil)
	supplier := seedSupplier(t, svc)

	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		SupplierID: supplier.ID,
		Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)

	repo.ops = nil
	_, err = svc.UpdatePurchaseStatus(context.Background(), purchase.ID, PurchaseStatusCancelled, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	// The materialization guard runs inside the transaction, after the
	// purchase row is locked, so a racing Materialize either committed
	// before the lock or is blocked on it when the guard reads.
	require.Equal(t, []string{"txBegin", "lockPurchase", "anyMaterialized"}, repo.ops)
}

func TestListPurchasesByServiceIsRestartable(t *testing.T) {
	svc, _ := newTestService(false)
	supplier := seedSupplier(t, svc)

	for i := 0; i < 3; i++ {
		_, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
			SupplierID: supplier.ID,
			Lines:      []PurchaseLineInput{{ServiceName: "Hosting", Quantity: 1, UnitPrice: 10}},
		})
		require.NoError(t, err)
	}

	first, err := svc.ListPurchasesByService(context.Background(), "Hosting", shared.Cursor{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := svc.ListPurchasesByService(context.Background(), "Hosting", shared.Cursor{AfterID: first[1].ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Greater(t, rest[0].ID, first[1].ID)

	_, err = svc.ListPurchasesByService(context.Background(), "  ", shared.Cursor{})
	require.ErrorIs(t, err, shared.ErrValidation)
}
