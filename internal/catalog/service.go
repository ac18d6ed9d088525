package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gescom/gescom/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	ListPurchases(ctx context.Context, cursor shared.Cursor) ([]Purchase, error)
	ListPurchasesByService(ctx context.Context, service string, cursor shared.Cursor) ([]Purchase, error)
	InsertSupplier(ctx context.Context, s Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	ToggleSupplier(ctx context.Context, id int64) (Supplier, error)
}

// StockPort tells the catalog whether any line of a purchase already backs
// a stock item. Cancelling such a purchase would orphan the movement log.
type StockPort interface {
	AnyMaterialized(ctx context.Context, purchaseID int64) (bool, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates supplier and purchase flows.
type Service struct {
	repo  RepositoryPort
	stock StockPort
	audit AuditPort
}

// NewService constructs the catalog service.
func NewService(repo RepositoryPort, stock StockPort, audit AuditPort) *Service {
	return &Service{repo: repo, stock: stock, audit: audit}
}

// CreateSupplierInput describes a new supplier.
type CreateSupplierInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Services []string
}

// CreateSupplier registers a supplier with its service catalog.
func (s *Service) CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name required", shared.ErrValidation)
	}
	services := make([]string, 0, len(input.Services))
	for _, svc := range input.Services {
		svc = strings.TrimSpace(svc)
		if svc != "" {
			services = append(services, svc)
		}
	}
	created, err := s.repo.InsertSupplier(ctx, Supplier{
		Name:     input.Name,
		Email:    strings.TrimSpace(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
		Address:  strings.TrimSpace(input.Address),
		Services: services,
		Active:   true,
	})
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_CREATE", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateSupplier rewrites a supplier's contact details and service catalog.
func (s *Service) UpdateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name required", shared.ErrValidation)
	}
	return s.repo.UpdateSupplier(ctx, supplier)
}

// ToggleSupplier flips the active flag. Deactivation is soft; purchases
// keep their reference.
func (s *Service) ToggleSupplier(ctx context.Context, id int64) (Supplier, error) {
	supplier, err := s.repo.ToggleSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, "SUPPLIER_TOGGLE", id, map[string]any{"active": supplier.Active})
	return supplier, nil
}

// GetSupplier fetches one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns all suppliers.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// PurchaseLineInput describes one requested line.
type PurchaseLineInput struct {
	ServiceName  string
	Quantity     int64
	UnitPrice    float64
	OrderDate    time.Time
	DeliveryDate *time.Time
	Photos       []string
}

// CreatePurchaseInput describes a new purchase.
type CreatePurchaseInput struct {
	SupplierID int64
	Note       string
	ActorID    int64
	Lines      []PurchaseLineInput
}

// CreatePurchase persists a purchase in status ordered. Line totals are
// recomputed here, never trusted from the caller.
func (s *Service) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (Purchase, error) {
	if len(input.Lines) == 0 {
		return Purchase{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	supplier, err := s.repo.GetSupplier(ctx, input.SupplierID)
	if err != nil {
		return Purchase{}, err
	}
	if !supplier.Active {
		return Purchase{}, fmt.Errorf("%w: supplier %d inactive", shared.ErrValidation, input.SupplierID)
	}
	purchase := Purchase{
		NumeroAchat: generateNumber("ACH"),
		SupplierID:  input.SupplierID,
		Status:      PurchaseStatusOrdered,
		Note:        strings.TrimSpace(input.Note),
		CreatedBy:   input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchaseID, err := tx.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID
		for _, line := range input.Lines {
			serviceName := strings.TrimSpace(line.ServiceName)
			if serviceName == "" || line.Quantity <= 0 || line.UnitPrice <= 0 {
				return fmt.Errorf("%w: line requires service, quantity > 0 and unit price > 0", shared.ErrValidation)
			}
			if len(line.Photos) > MaxLinePhotos {
				return fmt.Errorf("%w: at most %d photos per line", shared.ErrValidation, MaxLinePhotos)
			}
			orderDate := line.OrderDate
			if orderDate.IsZero() {
				orderDate = time.Now().UTC()
			}
			stored := PurchaseLine{
				PurchaseID:   purchaseID,
				ServiceName:  serviceName,
				Quantity:     line.Quantity,
				UnitPrice:    line.UnitPrice,
				Total:        float64(line.Quantity) * line.UnitPrice,
				OrderDate:    orderDate,
				DeliveryDate: line.DeliveryDate,
				Photos:       line.Photos,
			}
			inserted, err := tx.InsertPurchaseLine(ctx, stored)
			if err != nil {
				return err
			}
			purchase.Lines = append(purchase.Lines, inserted)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_CREATE", purchase.ID, map[string]any{"numero_achat": purchase.NumeroAchat, "lines": len(purchase.Lines)})
	return purchase, nil
}

// UpdatePurchaseStatus enforces the forward-only transition rule. Cancelling
// a purchase whose lines were materialized into stock is rejected; the stock
// linkage must be reversed first.
func (s *Service) UpdatePurchaseStatus(ctx context.Context, purchaseID int64, newStatus PurchaseStatus, actorID int64) (Purchase, error) {
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The row lock serializes this transition against Materialize,
		// which locks the same purchase row before inserting stock.
		p, err := tx.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if !CanTransition(p.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, p.Status, newStatus)
		}
		if newStatus == PurchaseStatusCancelled && s.stock != nil {
			materialized, err := s.stock.AnyMaterialized(ctx, purchaseID)
			if err != nil {
				return err
			}
			if materialized {
				return fmt.Errorf("%w: purchase %d backs stock items", shared.ErrInvalidTransition, purchaseID)
			}
		}
		if err := tx.UpdatePurchaseStatus(ctx, purchaseID, newStatus); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	purchase, err = s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "PURCHASE_STATUS", purchaseID, map[string]any{"status": string(newStatus), "actor": actorID})
	return purchase, nil
}

// GetPurchase fetches a purchase with its lines.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases pages through purchases, newest last by id.
func (s *Service) ListPurchases(ctx context.Context, cursor shared.Cursor) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, cursor.Normalize())
}

// ListPurchasesByService pages through purchases carrying a line for the
// given service name. The stock ledger's renewal flow uses this to find
// compatible replenishment sources; the cursor makes the scan restartable.
func (s *Service) ListPurchasesByService(ctx context.Context, service string, cursor shared.Cursor) ([]Purchase, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, fmt.Errorf("%w: service name required", shared.ErrValidation)
	}
	return s.repo.ListPurchasesByService(ctx, service, cursor.Normalize())
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "catalog", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
