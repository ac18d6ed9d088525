package catalog

import "time"

// Supplier offers a catalog of services that purchases are placed against.
// Suppliers referenced by purchases are deactivated, never deleted.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Services  []string  `json:"services"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PurchaseStatus enumerates the purchase state machine.
type PurchaseStatus string

const (
	PurchaseStatusOrdered   PurchaseStatus = "ordered"
	PurchaseStatusPaid      PurchaseStatus = "paid"
	PurchaseStatusReceived  PurchaseStatus = "received"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

// forwardRank orders the non-cancelled statuses; transitions only move up.
var forwardRank = map[PurchaseStatus]int{
	PurchaseStatusOrdered:  0,
	PurchaseStatusPaid:     1,
	PurchaseStatusReceived: 2,
}

// CanTransition reports whether from -> to is a legal purchase transition:
// strictly forward through ordered, paid, received, plus cancellation from
// any non-terminal state.
func CanTransition(from, to PurchaseStatus) bool {
	if from == PurchaseStatusCancelled || from == PurchaseStatusReceived {
		return false
	}
	if to == PurchaseStatusCancelled {
		return true
	}
	fromRank, ok := forwardRank[from]
	if !ok {
		return false
	}
	toRank, ok := forwardRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Purchase is an order placed with a supplier for one or more service lines.
type Purchase struct {
	ID          int64          `json:"id"`
	NumeroAchat string         `json:"numero_achat"`
	SupplierID  int64          `json:"supplier_id"`
	Status      PurchaseStatus `json:"status"`
	Note        string         `json:"note,omitempty"`
	CreatedBy   int64          `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Lines       []PurchaseLine `json:"lines,omitempty"`
}

// PurchaseLine is one service line of a purchase. Total is always
// recomputed server-side from quantity and unit price.
type PurchaseLine struct {
	ID           int64      `json:"id"`
	PurchaseID   int64      `json:"purchase_id"`
	ServiceName  string     `json:"nom_service"`
	Quantity     int64      `json:"quantite"`
	UnitPrice    float64    `json:"prix_unitaire"`
	Total        float64    `json:"total"`
	OrderDate    time.Time  `json:"date_commande"`
	DeliveryDate *time.Time `json:"date_livraison,omitempty"`
	Photos       []string   `json:"photos,omitempty"`
}

// MaxLinePhotos bounds photo references per line.
const MaxLinePhotos = 4
