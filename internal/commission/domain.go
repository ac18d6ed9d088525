package commission

import "time"

// Status enumerates the commission state machine. Payment is a single
// settling event, not incremental; voiding is only legal from unpaid.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
	StatusVoided Status = "voided"
)

// Commission is a payable owed to a beneficiary, derived from a sale. The
// rate is snapshotted at sale-creation time and never recomputed, so
// historical commissions stay stable when the beneficiary's rate changes.
type Commission struct {
	ID            int64      `json:"id"`
	SaleID        int64      `json:"sale_id"`
	SaleReference string     `json:"sale_reference"`
	BeneficiaryID int64      `json:"beneficiary_id"`
	RateSnapshot  float64    `json:"rate_snapshot"`
	CommissionDue float64    `json:"commission_due"`
	Status        Status     `json:"status"`
	PaidAmount    float64    `json:"paid_amount"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Summary aggregates a beneficiary's commissions. It is recomputed from
// commission rows on every read, never stored.
type Summary struct {
	BeneficiaryID    int64   `json:"beneficiary_id"`
	TotalDue         float64 `json:"total_due"`
	TotalPaid        float64 `json:"total_paid"`
	TotalOutstanding float64 `json:"total_outstanding"`
	Count            int64   `json:"count"`
}
