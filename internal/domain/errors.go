package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by lifecycle operations. Handlers map these to HTTP
// statuses; the service layer never wraps them in retry loops.
var (
	ErrNotFound           = errors.New("order not found")
	ErrForbidden          = errors.New("actor is not a permitted party for this operation")
	ErrInvalidState       = errors.New("order state does not permit this operation")
	ErrCredentialExpired  = errors.New("pickup credential has expired")
	ErrCredentialNotFound = errors.New("no active pickup credential matches")
	ErrCredentialInvalid  = errors.New("pickup credential does not match")
	ErrAlreadyCompleted   = errors.New("order is already completed")
	ErrDisputeActive      = errors.New("order has an active dispute")
	ErrRefundPending      = errors.New("order has a refund in progress")
	ErrConflict           = errors.New("order was modified concurrently")
)

// NotEligibleError reports a buyer completion attempt before the waiting
// period has elapsed. It carries the remaining time for client display.
type NotEligibleError struct {
	EligibleAt     time.Time
	HoursRemaining int
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("order not yet eligible for buyer completion, %d hour(s) remaining", e.HoursRemaining)
}
