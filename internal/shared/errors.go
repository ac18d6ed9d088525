package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected at the boundary.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status state machine violation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientStock indicates a reservation exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrIncompatibleRenewal indicates a renewal from a mismatched service.
	ErrIncompatibleRenewal = errors.New("incompatible renewal source")
	// ErrInvalidAmount indicates a non-positive or over-balance payment.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAlreadyPaid guards double settlement of a commission.
	ErrAlreadyPaid = errors.New("already paid")
	// ErrAlreadyCancelled guards repeated cancellation of a sale.
	ErrAlreadyCancelled = errors.New("already cancelled")
	// ErrAlreadyMaterialized guards duplicate materialization of a purchase line.
	ErrAlreadyMaterialized = errors.New("purchase line already materialized")
	// ErrPermissionDenied indicates the actor lacks the module grant.
	ErrPermissionDenied = errors.New("permission denied")
)

// UserSafeMessage maps an error to a message suitable for API consumers.
// Unknown errors collapse to a generic message so internals never leak.
func UserSafeMessage(err error) string {
	for _, known := range []error{
		ErrNotFound, ErrValidation, ErrInvalidTransition, ErrInsufficientStock,
		ErrIncompatibleRenewal, ErrInvalidAmount, ErrAlreadyPaid,
		ErrAlreadyCancelled, ErrAlreadyMaterialized, ErrPermissionDenied,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return "internal error"
}
