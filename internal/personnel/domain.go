package personnel

import "time"

// Employee is a member of staff or an intermediary who can be attached to
// sales as a commission beneficiary. CommissionRate is a percentage.
type Employee struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	Role           string    `json:"role,omitempty"`
	CommissionRate float64   `json:"commission_rate"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
