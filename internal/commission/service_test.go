package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/shared"
)

type memoryRepo struct {
	nextID int64
	bySale map[int64]*Commission
	byID   map[int64]*Commission
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, bySale: map[int64]*Commission{}, byID: map[int64]*Commission{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) InsertIdempotent(_ context.Context, c Commission) (Commission, error) {
	if existing, ok := m.bySale[c.SaleID]; ok {
		return *existing, nil
	}
	c.ID = m.nextID
	m.nextID++
	stored := c
	m.bySale[c.SaleID] = &stored
	m.byID[c.ID] = &stored
	return stored, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Commission, error) {
	c, ok := m.byID[id]
	if !ok {
		return Commission{}, shared.ErrNotFound
	}
	return *c, nil
}

func (m *memoryRepo) GetBySale(_ context.Context, saleID int64) (Commission, error) {
	c, ok := m.bySale[saleID]
	if !ok {
		return Commission{}, shared.ErrNotFound
	}
	return *c, nil
}

func (m *memoryRepo) List(_ context.Context, beneficiaryID int64, cursor shared.Cursor) ([]Commission, error) {
	var out []Commission
	for id := cursor.AfterID + 1; id < m.nextID; id++ {
		c, ok := m.byID[id]
		if !ok {
			continue
		}
		if beneficiaryID != 0 && c.BeneficiaryID != beneficiaryID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memoryRepo) SummaryFor(_ context.Context, beneficiaryID int64) (Summary, error) {
	s := Summary{BeneficiaryID: beneficiaryID}
	for _, c := range m.byID {
		if c.BeneficiaryID != beneficiaryID || c.Status == StatusVoided {
			continue
		}
		s.TotalDue += c.CommissionDue
		s.TotalPaid += c.PaidAmount
		if c.Status == StatusUnpaid {
			s.TotalOutstanding += c.CommissionDue
		}
		s.Count++
	}
	return s, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Commission, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Update(_ context.Context, c Commission) error {
	stored, ok := m.byID[c.ID]
	if !ok {
		return shared.ErrNotFound
	}
	*stored = c
	return nil
}

type staticRates map[int64]float64

func (r staticRates) RateFor(_ context.Context, id int64) (float64, error) {
	rate, ok := r[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return rate, nil
}

func TestCreateForSnapshotsRate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticRates{7: 12.5}, nil)

	c, err := svc.CreateFor(context.Background(), CreateForInput{
		SaleID: 42, SaleReference: "VTE-1", SaleTotal: 2000, BeneficiaryID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 12.5, c.RateSnapshot)
	require.Equal(t, 250.0, c.CommissionDue)
	require.Equal(t, StatusUnpaid, c.Status)
}

func TestCreateForIsIdempotentPerSale(t *testing.T) {
	repo := newMemoryRepo()
	rates := staticRates{7: 10}
	svc := NewService(repo, rates, nil)

	first, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 42, SaleTotal: 1000, BeneficiaryID: 7})
	require.NoError(t, err)

	// The rate changes between attempts; the retry keeps the snapshot.
	rates[7] = 50
	again, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 42, SaleTotal: 1000, BeneficiaryID: 7})
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, 10.0, again.RateSnapshot)
	require.Equal(t, 100.0, again.CommissionDue)
}

func TestCreateForRejectsMissingBeneficiary(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticRates{}, nil)

	_, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 1, SaleTotal: 100, BeneficiaryID: 99})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPaySettlesOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticRates{7: 10}, nil)

	c, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 1, SaleTotal: 1000, BeneficiaryID: 7})
	require.NoError(t, err)

	paid, err := svc.Pay(context.Background(), c.ID, 100, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Equal(t, 100.0, paid.PaidAmount)
	require.NotNil(t, paid.PaidAt)

	_, err = svc.Pay(context.Background(), c.ID, 100, 1)
	require.ErrorIs(t, err, shared.ErrAlreadyPaid)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticRates{}, nil)

	_, err := svc.Pay(context.Background(), 1, 0, 1)
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
	_, err = svc.Pay(context.Background(), 1, -5, 1)
	require.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestVoidOnlyFromUnpaid(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticRates{7: 10}, nil)

	c, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 1, SaleTotal: 1000, BeneficiaryID: 7})
	require.NoError(t, err)

	voided, err := svc.Void(context.Background(), c.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)

	// Voiding again is a no-op.
	voided, err = svc.Void(context.Background(), c.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)

	// A paid commission cannot be voided.
	other, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 2, SaleTotal: 500, BeneficiaryID: 7})
	require.NoError(t, err)
	_, err = svc.Pay(context.Background(), other.ID, 50, 1)
	require.NoError(t, err)
	_, err = svc.Void(context.Background(), other.ID, 1)
	require.ErrorIs(t, err, shared.ErrAlreadyPaid)

	// Paying a voided commission is rejected.
	_, err = svc.Pay(context.Background(), c.ID, 10, 1)
	require.True(t, errors.Is(err, shared.ErrInvalidTransition))
}

func TestSummaryExcludesVoided(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticRates{7: 10}, nil)

	a, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 1, SaleTotal: 1000, BeneficiaryID: 7})
	require.NoError(t, err)
	b, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 2, SaleTotal: 2000, BeneficiaryID: 7})
	require.NoError(t, err)
	c, err := svc.CreateFor(context.Background(), CreateForInput{SaleID: 3, SaleTotal: 3000, BeneficiaryID: 7})
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), a.ID, 100, 1)
	require.NoError(t, err)
	_, err = svc.Void(context.Background(), c.ID, 1)
	require.NoError(t, err)
	_ = b

	summary, err := svc.SummaryFor(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 300.0, summary.TotalDue)
	require.Equal(t, 100.0, summary.TotalPaid)
	require.Equal(t, 200.0, summary.TotalOutstanding)
	require.Equal(t, int64(2), summary.Count)
}
