package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gescom/gescom/internal/catalog"
	"github.com/gescom/gescom/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (StockItem, error)
	ListItems(ctx context.Context, cursor shared.Cursor) ([]StockItem, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// CatalogPort resolves purchase provenance for materialization and renewal.
type CatalogPort interface {
	GetPurchaseLine(ctx context.Context, lineID int64) (catalog.PurchaseLine, catalog.PurchaseStatus, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementFilter selects ledger entries.
type MovementFilter struct {
	StockID int64
	Type    MovementType
	Cursor  shared.Cursor
}

// Service coordinates the stock ledger. Every quantity change goes through
// a movement insert and a balance write in one row-locked transaction.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
}

// NewService builds the stock service.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit}
}

// MaterializeInput describes a stock materialization request.
type MaterializeInput struct {
	PurchaseLineID int64
	Category       Category
	QuantityMin    int64
	SalePrice      float64
	Description    string
	ActorID        int64
}

// Materialize creates a stock item from a purchase line together with its
// initial inbound_purchase movement, inside one transaction. A purchase
// line backs at most one stock item.
func (s *Service) Materialize(ctx context.Context, input MaterializeInput) (StockItem, error) {
	if !KnownCategory(input.Category) {
		return StockItem{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, input.Category)
	}
	if input.QuantityMin < 0 {
		return StockItem{}, fmt.Errorf("%w: quantity_min must be >= 0", shared.ErrValidation)
	}
	if input.SalePrice <= 0 {
		return StockItem{}, fmt.Errorf("%w: sale price must be > 0", shared.ErrValidation)
	}
	line, _, err := s.catalog.GetPurchaseLine(ctx, input.PurchaseLineID)
	if err != nil {
		return StockItem{}, err
	}
	item := StockItem{
		PurchaseLineID: input.PurchaseLineID,
		CodeProduit:    generateCode(),
		ServiceName:    line.ServiceName,
		Category:       input.Category,
		Quantity:       line.Quantity,
		QuantityMin:    input.QuantityMin,
		SalePrice:      input.SalePrice,
		Description:    strings.TrimSpace(input.Description),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock the purchase row so a concurrent cancellation cannot land
		// between this check and the item insert.
		status, err := tx.PurchaseStatusForUpdate(ctx, input.PurchaseLineID)
		if err != nil {
			return err
		}
		if status == catalog.PurchaseStatusCancelled {
			return fmt.Errorf("%w: purchase is cancelled", shared.ErrValidation)
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return tx.InsertMovement(ctx, Movement{
			StockID:   id,
			Type:      MovementInboundPurchase,
			Quantity:  line.Quantity,
			Reference: fmt.Sprintf("achat:%d", line.PurchaseID),
			ActorID:   input.ActorID,
		})
	})
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, input.ActorID, "STOCK_MATERIALIZE", item.ID, map[string]any{
		"code_produit":     item.CodeProduit,
		"purchase_line_id": input.PurchaseLineID,
		"quantite":         line.Quantity,
	})
	return item, nil
}

// Renew replenishes an existing stock item from another purchase line of
// the same service, appending an inbound_renewal movement for the full
// line quantity.
func (s *Service) Renew(ctx context.Context, stockID, purchaseLineID int64, note string, actorID int64) (StockItem, error) {
	line, _, err := s.catalog.GetPurchaseLine(ctx, purchaseLineID)
	if err != nil {
		return StockItem{}, err
	}
	var updated StockItem
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		status, err := tx.PurchaseStatusForUpdate(ctx, purchaseLineID)
		if err != nil {
			return err
		}
		if status == catalog.PurchaseStatusCancelled {
			return fmt.Errorf("%w: purchase is cancelled", shared.ErrValidation)
		}
		item, err := tx.GetItemForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(item.ServiceName, line.ServiceName) {
			return fmt.Errorf("%w: item %q, line %q", shared.ErrIncompatibleRenewal, item.ServiceName, line.ServiceName)
		}
		if err := tx.InsertMovement(ctx, Movement{
			StockID:   stockID,
			Type:      MovementInboundRenewal,
			Quantity:  line.Quantity,
			Reference: fmt.Sprintf("achat:%d", line.PurchaseID),
			Note:      strings.TrimSpace(note),
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		item.Quantity += line.Quantity
		if err := tx.UpdateItemQuantity(ctx, stockID, item.Quantity); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, actorID, "STOCK_RENEW", stockID, map[string]any{"quantite": line.Quantity, "achat_id": line.PurchaseID})
	return updated, nil
}

// Reserve atomically checks availability and appends an outbound_sale
// movement, holding a row lock on the stock item for the duration. This is
// the only path by which quantity decreases.
func (s *Service) Reserve(ctx context.Context, stockID, quantity int64, reference string, actorID int64) (StockItem, error) {
	if quantity <= 0 {
		return StockItem{}, fmt.Errorf("%w: quantity must be > 0", shared.ErrValidation)
	}
	var updated StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if item.Unavailable {
			return fmt.Errorf("%w: stock item %d unavailable", shared.ErrValidation, stockID)
		}
		if quantity > item.Quantity {
			return fmt.Errorf("%w: requested %d, available %d", shared.ErrInsufficientStock, quantity, item.Quantity)
		}
		if err := tx.InsertMovement(ctx, Movement{
			StockID:   stockID,
			Type:      MovementOutboundSale,
			Quantity:  quantity,
			Reference: reference,
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		item.Quantity -= quantity
		if err := tx.UpdateItemQuantity(ctx, stockID, item.Quantity); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	return updated, nil
}

// Release compensates a reservation when the referencing sale is
// cancelled. The audit trail keeps the original outbound movement; a
// reversal entry restores the quantity.
func (s *Service) Release(ctx context.Context, stockID, quantity int64, reference string, actorID int64) (StockItem, error) {
	if quantity <= 0 {
		return StockItem{}, fmt.Errorf("%w: quantity must be > 0", shared.ErrValidation)
	}
	var updated StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			StockID:   stockID,
			Type:      MovementReversal,
			Quantity:  quantity,
			Reference: reference,
			ActorID:   actorID,
		}); err != nil {
			return err
		}
		item.Quantity += quantity
		if err := tx.UpdateItemQuantity(ctx, stockID, item.Quantity); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, actorID, "STOCK_RELEASE", stockID, map[string]any{"quantite": quantity, "reference": reference})
	return updated, nil
}

// SetUnavailable flips the administrative override.
func (s *Service) SetUnavailable(ctx context.Context, stockID int64, unavailable bool, actorID int64) (StockItem, error) {
	var updated StockItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if err := tx.SetUnavailable(ctx, stockID, unavailable); err != nil {
			return err
		}
		item.Unavailable = unavailable
		updated = item
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.recordAudit(ctx, actorID, "STOCK_OVERRIDE", stockID, map[string]any{"unavailable": unavailable})
	return updated, nil
}

// GetItem fetches one stock item.
func (s *Service) GetItem(ctx context.Context, id int64) (StockItem, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems pages through stock items.
func (s *Service) ListItems(ctx context.Context, cursor shared.Cursor) ([]StockItem, error) {
	return s.repo.ListItems(ctx, cursor.Normalize())
}

// ListMovements pages through the ledger in insertion order.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	filter.Cursor = filter.Cursor.Normalize()
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "stock", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateCode() string {
	return "PRD-" + strings.ToUpper(uuid.NewString())
}
