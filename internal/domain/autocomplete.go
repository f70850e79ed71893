package domain

import "time"

// AutoCompletionWindow is how long a buyer must wait after the reference
// point before a no-credential completion is allowed.
const AutoCompletionWindow = 24 * time.Hour

// Eligibility is the result of evaluating a buyer-triggered completion.
// Blocked carries the error kind that rules out completion regardless of
// elapsed time; when Blocked is nil and Eligible is false the caller should
// surface a NotEligibleError with HoursRemaining.
type Eligibility struct {
	Eligible       bool
	EligibleAt     time.Time
	HoursRemaining int
	Blocked        error
}

// EvaluateAutoCompletion computes whether the buyer may force-complete the
// order at the given instant. Pure function; the only clock input is now.
//
// The reference point is AutoCompletionEligibleAt when set, otherwise
// UpdatedAt once payment is confirmed, otherwise CreatedAt. The stored
// override is the preferred anchor: the payment consumer writes it at
// confirmation time so later unrelated updates cannot shift the window.
func EvaluateAutoCompletion(o *Order, now time.Time) Eligibility {
	ref := o.CreatedAt
	if o.AutoCompletionEligibleAt != nil {
		ref = *o.AutoCompletionEligibleAt
	} else if o.PaymentStatus == PaymentStatusPaid {
		ref = o.UpdatedAt
	}

	eligibleAt := ref.Add(AutoCompletionWindow)
	result := Eligibility{
		EligibleAt:     eligibleAt,
		HoursRemaining: hoursRemaining(eligibleAt, now),
	}

	switch {
	case o.Status == OrderStatusCompleted:
		result.Blocked = ErrAlreadyCompleted
	case o.Status == OrderStatusCancelled:
		result.Blocked = ErrInvalidState
	case o.HasDispute:
		result.Blocked = ErrDisputeActive
	case o.RefundStatus == RefundStatusRequested || o.RefundStatus == RefundStatusProcessing:
		result.Blocked = ErrRefundPending
	case o.PaymentStatus != PaymentStatusPaid:
		// Not an error kind: the window simply has not started counting
		// from a confirmed payment, so the order is plainly not eligible.
	default:
		result.Eligible = !now.Before(eligibleAt)
	}

	return result
}

func hoursRemaining(eligibleAt, now time.Time) int {
	remaining := eligibleAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	hours := int(remaining / time.Hour)
	if remaining%time.Hour > 0 {
		hours++
	}
	return hours
}
