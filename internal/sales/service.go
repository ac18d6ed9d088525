package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gescom/gescom/internal/commission"
	"github.com/gescom/gescom/internal/shared"
	"github.com/gescom/gescom/internal/stock"
)

// RepositoryPort abstracts sale persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, cursor shared.Cursor) ([]Sale, error)
	ListPayments(ctx context.Context, saleID int64) ([]Payment, error)
}

// StockPort reserves and releases quantity in the stock ledger.
type StockPort interface {
	Reserve(ctx context.Context, stockID, quantity int64, reference string, actorID int64) (stock.StockItem, error)
	Release(ctx context.Context, stockID, quantity int64, reference string, actorID int64) (stock.StockItem, error)
}

// CommissionPort derives and voids commissions attached to sales.
type CommissionPort interface {
	CreateFor(ctx context.Context, input commission.CreateForInput) (commission.Commission, error)
	GetBySale(ctx context.Context, saleID int64) (commission.Commission, error)
	Void(ctx context.Context, id int64, actorID int64) (commission.Commission, error)
}

// IdempotencyPort guards retried sale submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the sale lifecycle.
type Service struct {
	repo        RepositoryPort
	stock       StockPort
	commissions CommissionPort
	idempotency IdempotencyPort
	audit       AuditPort
}

// NewService constructs the sales engine.
func NewService(repo RepositoryPort, stockPort StockPort, commissions CommissionPort, idempotency IdempotencyPort, audit AuditPort) *Service {
	return &Service{repo: repo, stock: stockPort, commissions: commissions, idempotency: idempotency, audit: audit}
}

// SaleLineInput is one quantity request against a stock item. Unit prices
// are snapshotted server-side from the stock item, never trusted from the
// caller.
type SaleLineInput struct {
	StockID  int64
	Quantity int64
}

// CreateSaleInput carries the sale request.
type CreateSaleInput struct {
	ClientName     string
	ClientPhone    string
	ClientAddress  string
	Lines          []SaleLineInput
	BeneficiaryID  int64
	IdempotencyKey string
	ActorID        int64
}

// CreateSale reserves stock line by line, then persists the sale as pending
// and, when a beneficiary is attached, derives its commission. Reservations
// lock one stock row at a time; on any failure every already-reserved line
// is released before the error is returned, so no partial reservation is
// left behind.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error) {
	if input.ClientName == "" {
		return Sale{}, fmt.Errorf("%w: client name required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for _, line := range input.Lines {
		if line.StockID == 0 || line.Quantity <= 0 {
			return Sale{}, fmt.Errorf("%w: line must reference a stock item with quantity > 0", shared.ErrValidation)
		}
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
	}

	reference := generateReference()
	reserved := make([]SaleLine, 0, len(input.Lines))
	release := func() {
		for _, line := range reserved {
			if _, err := s.stock.Release(ctx, line.StockID, line.Quantity, reference, input.ActorID); err != nil {
				s.recordAudit(ctx, input.ActorID, "SALE_RELEASE_FAILED", 0, map[string]any{
					"reference": reference, "stock_id": line.StockID, "error": err.Error(),
				})
			}
		}
	}
	fail := func(err error) (Sale, error) {
		release()
		if input.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Sale{}, err
	}

	var total float64
	for _, line := range input.Lines {
		item, err := s.stock.Reserve(ctx, line.StockID, line.Quantity, reference, input.ActorID)
		if err != nil {
			return fail(err)
		}
		subtotal := float64(line.Quantity) * item.SalePrice
		reserved = append(reserved, SaleLine{
			StockID:   line.StockID,
			Quantity:  line.Quantity,
			UnitPrice: item.SalePrice,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	var created Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.InsertSale(ctx, Sale{
			Reference:     reference,
			ClientName:    input.ClientName,
			ClientPhone:   input.ClientPhone,
			ClientAddress: input.ClientAddress,
			Total:         total,
			Status:        StatusPending,
			BeneficiaryID: input.BeneficiaryID,
		})
		if err != nil {
			return err
		}
		for i := range reserved {
			reserved[i].SaleID = sale.ID
			line, err := tx.InsertLine(ctx, reserved[i])
			if err != nil {
				return err
			}
			sale.Lines = append(sale.Lines, line)
		}
		if input.BeneficiaryID != 0 {
			if _, err := s.commissions.CreateFor(ctx, commission.CreateForInput{
				SaleID:        sale.ID,
				SaleReference: sale.Reference,
				SaleTotal:     sale.Total,
				BeneficiaryID: input.BeneficiaryID,
				ActorID:       input.ActorID,
			}); err != nil {
				return err
			}
		}
		created = sale
		return nil
	})
	if err != nil {
		return fail(err)
	}
	s.recordAudit(ctx, input.ActorID, "SALE_CREATE", created.ID, map[string]any{"reference": created.Reference, "total": created.Total})
	return created, nil
}

// RecordPayment appends one installment and recomputes the balance. The
// sale row is locked so concurrent payments serialize; the transition to
// paid happens automatically when the balance reaches zero.
func (s *Service) RecordPayment(ctx context.Context, saleID int64, amount float64, note string, actorID int64) (Sale, error) {
	if amount <= 0 {
		return Sale{}, fmt.Errorf("%w: amount must be > 0", shared.ErrInvalidAmount)
	}
	var updated Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCancelled:
			return shared.ErrAlreadyCancelled
		case StatusPaid:
			return shared.ErrAlreadyPaid
		}
		if Cents(amount) > Cents(sale.BalanceDue()) {
			return fmt.Errorf("%w: amount %.2f exceeds balance %.2f", shared.ErrInvalidAmount, amount, sale.BalanceDue())
		}
		if _, err := tx.InsertPayment(ctx, Payment{SaleID: saleID, Amount: amount, Note: note, ActorID: actorID}); err != nil {
			return err
		}
		sale.AmountPaid = float64(Cents(sale.AmountPaid)+Cents(amount)) / 100
		if sale.IsSettled() {
			sale.Status = StatusPaid
		}
		if err := tx.UpdateSettlement(ctx, saleID, sale.AmountPaid, sale.Status); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "SALE_PAYMENT", saleID, map[string]any{"amount": amount, "balance": updated.BalanceDue()})
	return updated, nil
}

// Cancel marks the sale cancelled, then releases every reserved line and
// voids an attached unpaid commission. Releases run after the status
// commit as compensating movements; a release failure leaves an audit
// trace instead of resurrecting the sale.
func (s *Service) Cancel(ctx context.Context, saleID int64, actorID int64) (Sale, error) {
	var cancelled Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == StatusCancelled {
			return shared.ErrAlreadyCancelled
		}
		sale.Status = StatusCancelled
		if err := tx.UpdateStatus(ctx, saleID, StatusCancelled); err != nil {
			return err
		}
		cancelled = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	for _, line := range cancelled.Lines {
		if _, err := s.stock.Release(ctx, line.StockID, line.Quantity, cancelled.Reference, actorID); err != nil {
			s.recordAudit(ctx, actorID, "SALE_RELEASE_FAILED", saleID, map[string]any{
				"stock_id": line.StockID, "error": err.Error(),
			})
		}
	}

	if cancelled.BeneficiaryID != 0 {
		c, err := s.commissions.GetBySale(ctx, saleID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			// No commission was derived; nothing to void.
		case err != nil:
			s.recordAudit(ctx, actorID, "COMMISSION_LOOKUP_FAILED", saleID, map[string]any{"error": err.Error()})
		default:
			if _, err := s.commissions.Void(ctx, c.ID, actorID); err != nil {
				if errors.Is(err, shared.ErrAlreadyPaid) {
					// Paid commissions survive cancellation; flag for review.
					s.recordAudit(ctx, actorID, "COMMISSION_PAID_ON_CANCEL", saleID, map[string]any{"commission_id": c.ID})
				} else {
					s.recordAudit(ctx, actorID, "COMMISSION_VOID_FAILED", saleID, map[string]any{"error": err.Error()})
				}
			}
		}
	}

	s.recordAudit(ctx, actorID, "SALE_CANCEL", saleID, map[string]any{"reference": cancelled.Reference})
	return cancelled, nil
}

// Get fetches one sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List pages sales by ascending id.
func (s *Service) List(ctx context.Context, cursor shared.Cursor) ([]Sale, error) {
	return s.repo.List(ctx, cursor.Normalize())
}

// ListPayments returns the payment history of a sale.
func (s *Service) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, saleID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "sale", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateReference() string {
	return fmt.Sprintf("VTE-%d", time.Now().UnixNano())
}
