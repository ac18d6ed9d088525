package commission

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gescom/gescom/internal/shared"
)

// RepositoryPort abstracts persistence for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertIdempotent(ctx context.Context, c Commission) (Commission, error)
	Get(ctx context.Context, id int64) (Commission, error)
	GetBySale(ctx context.Context, saleID int64) (Commission, error)
	List(ctx context.Context, beneficiaryID int64, cursor shared.Cursor) ([]Commission, error)
	SummaryFor(ctx context.Context, beneficiaryID int64) (Summary, error)
}

// PersonnelPort resolves the beneficiary's current commission rate.
type PersonnelPort interface {
	RateFor(ctx context.Context, id int64) (float64, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service computes and settles commissions.
type Service struct {
	repo      RepositoryPort
	personnel PersonnelPort
	audit     AuditPort
}

// NewService constructs the commission engine.
func NewService(repo RepositoryPort, personnel PersonnelPort, audit AuditPort) *Service {
	return &Service{repo: repo, personnel: personnel, audit: audit}
}

// CreateForInput carries the sale facts the engine derives from.
type CreateForInput struct {
	SaleID        int64
	SaleReference string
	SaleTotal     float64
	BeneficiaryID int64
	ActorID       int64
}

// CreateFor snapshots the beneficiary's current rate and persists the
// derived commission as unpaid. Idempotent per sale: a second call returns
// the existing record untouched, so retried sale-creation transactions
// never produce two rows.
func (s *Service) CreateFor(ctx context.Context, input CreateForInput) (Commission, error) {
	if input.SaleID == 0 || input.BeneficiaryID == 0 {
		return Commission{}, fmt.Errorf("%w: sale and beneficiary required", shared.ErrValidation)
	}
	if input.SaleTotal <= 0 {
		return Commission{}, fmt.Errorf("%w: sale total must be > 0", shared.ErrValidation)
	}
	rate, err := s.personnel.RateFor(ctx, input.BeneficiaryID)
	if err != nil {
		return Commission{}, err
	}
	due := math.Round(input.SaleTotal*rate) / 100
	created, err := s.repo.InsertIdempotent(ctx, Commission{
		SaleID:        input.SaleID,
		SaleReference: input.SaleReference,
		BeneficiaryID: input.BeneficiaryID,
		RateSnapshot:  rate,
		CommissionDue: due,
		Status:        StatusUnpaid,
	})
	if err != nil {
		return Commission{}, err
	}
	s.recordAudit(ctx, input.ActorID, "COMMISSION_CREATE", created.ID, map[string]any{
		"sale_id": input.SaleID, "rate": rate, "due": created.CommissionDue,
	})
	return created, nil
}

// Pay settles a commission in one event. Partial commission payments are
// not modeled; the amount recorded is whatever was actually disbursed.
func (s *Service) Pay(ctx context.Context, id int64, amount float64, actorID int64) (Commission, error) {
	if amount <= 0 {
		return Commission{}, fmt.Errorf("%w: amount must be > 0", shared.ErrInvalidAmount)
	}
	var paid Commission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch c.Status {
		case StatusPaid:
			return shared.ErrAlreadyPaid
		case StatusVoided:
			return fmt.Errorf("%w: commission %d voided", shared.ErrInvalidTransition, id)
		}
		now := time.Now().UTC()
		c.Status = StatusPaid
		c.PaidAmount = amount
		c.PaidAt = &now
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		paid = c
		return nil
	})
	if err != nil {
		return Commission{}, err
	}
	s.recordAudit(ctx, actorID, "COMMISSION_PAY", id, map[string]any{"amount": amount})
	return paid, nil
}

// Void marks an unpaid commission void; the sales engine calls this on
// cancellation. Voiding a paid commission is rejected.
func (s *Service) Void(ctx context.Context, id int64, actorID int64) (Commission, error) {
	var voided Commission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch c.Status {
		case StatusPaid:
			return shared.ErrAlreadyPaid
		case StatusVoided:
			voided = c
			return nil
		}
		c.Status = StatusVoided
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		voided = c
		return nil
	})
	if err != nil {
		return Commission{}, err
	}
	s.recordAudit(ctx, actorID, "COMMISSION_VOID", id, nil)
	return voided, nil
}

// Get fetches one commission.
func (s *Service) Get(ctx context.Context, id int64) (Commission, error) {
	return s.repo.Get(ctx, id)
}

// GetBySale fetches the commission derived from a sale, if any.
func (s *Service) GetBySale(ctx context.Context, saleID int64) (Commission, error) {
	return s.repo.GetBySale(ctx, saleID)
}

// List pages commissions, optionally filtered by beneficiary.
func (s *Service) List(ctx context.Context, beneficiaryID int64, cursor shared.Cursor) ([]Commission, error) {
	return s.repo.List(ctx, beneficiaryID, cursor.Normalize())
}

// SummaryFor aggregates due, paid and outstanding totals for a
// beneficiary. Pure read projection; voided commissions are excluded.
func (s *Service) SummaryFor(ctx context.Context, beneficiaryID int64) (Summary, error) {
	if beneficiaryID == 0 {
		return Summary{}, fmt.Errorf("%w: beneficiary required", shared.ErrValidation)
	}
	return s.repo.SummaryFor(ctx, beneficiaryID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "commission", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
