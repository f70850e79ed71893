package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusAwaitingShipping OrderStatus = "awaiting_shipping"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusAwaiting PaymentStatus = "awaiting_payment"
	PaymentStatusPaid     PaymentStatus = "paid"
)

type RefundStatus string

const (
	RefundStatusNone       RefundStatus = "none"
	RefundStatusRequested  RefundStatus = "requested"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusResolved   RefundStatus = "resolved"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Order is the single aggregate owned by this service. Pickup credential
// fields are set and cleared together; they stay null for shipped orders.
type Order struct {
	ID                       uuid.UUID     `json:"id"`
	BuyerID                  uuid.UUID     `json:"buyer_id"`
	SellerID                 uuid.UUID     `json:"seller_id"`
	ListingID                uuid.UUID     `json:"listing_id"`
	ListingTitle             string        `json:"listing_title"`
	SellerName               string        `json:"seller_name"`
	Amount                   float64       `json:"amount"`
	IsPickup                 bool          `json:"is_pickup"`
	Status                   OrderStatus   `json:"status"`
	PaymentStatus            PaymentStatus `json:"payment_status"`
	PickupCode               *string       `json:"pickup_code,omitempty"`
	PickupToken              *string       `json:"pickup_token,omitempty"`
	PickupCodeCreatedAt      *time.Time    `json:"pickup_code_created_at,omitempty"`
	PickupCodeExpiresAt      *time.Time    `json:"pickup_code_expires_at,omitempty"`
	SellerPickupInitiated    bool          `json:"seller_pickup_initiated"`
	PickupCompleted          bool          `json:"pickup_completed"`
	PickupCompletedAt        *time.Time    `json:"pickup_completed_at,omitempty"`
	HasDispute               bool          `json:"has_dispute"`
	RefundStatus             RefundStatus  `json:"refund_status"`
	ReviewSubmitted          bool          `json:"review_submitted"`
	CancelledReason          string        `json:"cancelled_reason,omitempty"`
	AutoCompletionEligibleAt *time.Time    `json:"auto_completion_eligible_at,omitempty"`
	CreatedAt                time.Time     `json:"created_at"`
	UpdatedAt                time.Time     `json:"updated_at"`
}

// forwardEdges is the forward chain of the status machine. Cancellation is
// handled separately: any non-terminal status may move to cancelled.
var forwardEdges = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusPaid, OrderStatusCompleted},
	OrderStatusPaid:             {OrderStatusAwaitingShipping, OrderStatusCompleted},
	OrderStatusAwaitingShipping: {OrderStatusShipped, OrderStatusCompleted},
	OrderStatusShipped:          {OrderStatusCompleted},
	OrderStatusCompleted:        {},
	OrderStatusCancelled:        {},
}

// pickupCredentialStatuses are the statuses in which a seller may issue a
// pickup credential.
var pickupCredentialStatuses = map[OrderStatus]bool{
	OrderStatusPending:          true,
	OrderStatusPaid:             true,
	OrderStatusAwaitingShipping: true,
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// CanTransition reports whether the status machine allows moving from the
// order's current status to next.
func (o *Order) CanTransition(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return !o.IsTerminal()
	}
	for _, edge := range forwardEdges[o.Status] {
		if edge == next {
			return true
		}
	}
	return false
}

// CanIssuePickupCredential reports whether the order is in a state where the
// seller may generate (or re-fetch) a pickup credential.
func (o *Order) CanIssuePickupCredential() bool {
	return o.IsPickup && !o.PickupCompleted && pickupCredentialStatuses[o.Status]
}

// HasActiveCredential reports whether an unexpired pickup credential is
// outstanding at the given instant.
func (o *Order) HasActiveCredential(now time.Time) bool {
	return o.PickupCode != nil && o.PickupToken != nil &&
		o.PickupCodeExpiresAt != nil && now.Before(*o.PickupCodeExpiresAt)
}

// MatchesCredential reports whether the presented value equals either the
// display code or the opaque token of the active credential.
func (o *Order) MatchesCredential(credential string) bool {
	if credential == "" {
		return false
	}
	if o.PickupCode != nil && *o.PickupCode == credential {
		return true
	}
	if o.PickupToken != nil && *o.PickupToken == credential {
		return true
	}
	return false
}

// IsParty reports whether the actor is the buyer or the seller of the order.
func (o *Order) IsParty(actorID uuid.UUID) bool {
	return actorID == o.BuyerID || actorID == o.SellerID
}

// Counterparty returns the other side of the order relative to the actor.
func (o *Order) Counterparty(actorID uuid.UUID) uuid.UUID {
	if actorID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}
