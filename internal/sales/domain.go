package sales

import (
	"math"
	"time"
)

// Status is the sale lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Sale is a client order consuming stock. Client identity is denormalized
// at creation time; clients are not first-class accounts.
type Sale struct {
	ID            int64      `json:"id"`
	Reference     string     `json:"reference"`
	ClientName    string     `json:"nom_client"`
	ClientPhone   string     `json:"numero"`
	ClientAddress string     `json:"adresse"`
	Total         float64    `json:"prix_total"`
	Status        Status     `json:"status"`
	BeneficiaryID int64      `json:"beneficiary_id,omitempty"`
	Lines         []SaleLine `json:"lines"`
	AmountPaid    float64    `json:"amount_paid"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BalanceDue is the outstanding amount. Totals and payments are compared
// in whole cents so binary fraction error in the running sums can never
// leave a dust balance that blocks exact settlement.
func (s Sale) BalanceDue() float64 {
	return float64(Cents(s.Total)-Cents(s.AmountPaid)) / 100
}

// IsSettled reports whether the sale is fully paid.
func (s Sale) IsSettled() bool {
	return Cents(s.AmountPaid) >= Cents(s.Total)
}

// Cents converts an amount to whole cents. All balance arithmetic goes
// through this conversion.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// SaleLine snapshots the stock item's unit price at sale time.
type SaleLine struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	StockID   int64   `json:"stock_id"`
	Quantity  int64   `json:"quantite"`
	UnitPrice float64 `json:"prix_unitaire"`
	Subtotal  float64 `json:"subtotal"`
}

// Payment is one settlement installment. Append-only.
type Payment struct {
	ID        int64     `json:"id"`
	SaleID    int64     `json:"sale_id"`
	Amount    float64   `json:"montant"`
	Note      string    `json:"commentaire,omitempty"`
	ActorID   int64     `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}
