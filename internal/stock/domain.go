package stock

import "time"

// Category enumerates stock item categories.
type Category string

const (
	CategorySoftware Category = "software"
	CategoryHosting  Category = "hosting"
	CategorySecurity Category = "security"
	CategoryServices Category = "services"
	CategoryHardware Category = "hardware"
)

// KnownCategory reports whether the category is one of the enum values.
func KnownCategory(c Category) bool {
	switch c {
	case CategorySoftware, CategoryHosting, CategorySecurity, CategoryServices, CategoryHardware:
		return true
	}
	return false
}

// MovementType enumerates the ledger entry types. Quantity is always
// positive; the sign is implied by the type.
type MovementType string

const (
	MovementInboundPurchase MovementType = "inbound_purchase"
	MovementInboundRenewal  MovementType = "inbound_renewal"
	MovementOutboundSale    MovementType = "outbound_sale"
	MovementReversal        MovementType = "reversal"
)

// Direction returns +1 for inbound types and -1 for outbound types.
func (t MovementType) Direction() int64 {
	if t == MovementOutboundSale {
		return -1
	}
	return 1
}

// Status is derived from quantity and the reorder threshold, never stored
// as an independent source of truth.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusLow         Status = "low"
	StatusOutOfStock  Status = "out_of_stock"
	StatusUnavailable Status = "unavailable"
)

// StockItem is an inventoriable unit materialized from a purchase line.
// Quantity is a running balance only ever written in the same transaction
// as a movement insert, and recomputable as Σinbound − Σoutbound.
type StockItem struct {
	ID             int64     `json:"id"`
	PurchaseLineID int64     `json:"purchase_line_id"`
	CodeProduit    string    `json:"code_produit"`
	ServiceName    string    `json:"nom_service"`
	Category       Category  `json:"categorie"`
	Quantity       int64     `json:"quantite"`
	QuantityMin    int64     `json:"quantite_min"`
	SalePrice      float64   `json:"prix_vente"`
	Description    string    `json:"description,omitempty"`
	Unavailable    bool      `json:"unavailable"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Status derives the item status. The administrative unavailable override
// wins regardless of quantity.
func (i StockItem) Status() Status {
	switch {
	case i.Unavailable:
		return StatusUnavailable
	case i.Quantity == 0:
		return StatusOutOfStock
	case i.Quantity <= i.QuantityMin:
		return StatusLow
	default:
		return StatusAvailable
	}
}

// Movement is one append-only ledger entry for a stock item. Rows are
// never updated or deleted.
type Movement struct {
	ID        int64        `json:"id"`
	StockID   int64        `json:"stock_id"`
	Type      MovementType `json:"type"`
	Quantity  int64        `json:"quantite"`
	Reference string       `json:"reference"`
	Note      string       `json:"commentaire,omitempty"`
	ActorID   int64        `json:"actor_id"`
	CreatedAt time.Time    `json:"created_at"`
}
