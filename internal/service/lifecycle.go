package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cardbazaar/order-service/internal/clock"
	"github.com/cardbazaar/order-service/internal/credential"
	"github.com/cardbazaar/order-service/internal/domain"
	"github.com/cardbazaar/order-service/internal/events"
	"github.com/google/uuid"
)

// OrderStore is the durable store of orders. Mutations are conditional:
// implementations return domain.ErrConflict when the stated precondition no
// longer holds, and never retry internally.
type OrderStore interface {
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderByCredential(ctx context.Context, credential string) (*domain.Order, error)
	SetPickupCredential(ctx context.Context, orderID uuid.UUID, code, token string, createdAt, expiresAt time.Time) error
	CompletePickup(ctx context.Context, orderID uuid.UUID, token string, completedAt time.Time) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, expected domain.OrderStatus, completedAt time.Time) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, at time.Time) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, expected domain.OrderStatus, reason string, at time.Time) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
}

// Notifier delivers notifications about completed transitions. Delivery is
// fire-and-forget: a failed notification never fails or rolls back the
// transition it reports.
type Notifier interface {
	Notify(ctx context.Context, event events.OrderEvent) error
}

// OrderLifecycle implements the guarded transitions of one order: the
// pickup credential protocol, the buyer fallback completion, cancellation
// and the shipping chain. No operation spans more than one order.
type OrderLifecycle struct {
	store    OrderStore
	creds    credential.Generator
	clock    clock.Clock
	notifier Notifier
}

func NewOrderLifecycle(store OrderStore, creds credential.Generator, clk clock.Clock, notifier Notifier) *OrderLifecycle {
	return &OrderLifecycle{
		store:    store,
		creds:    creds,
		clock:    clk,
		notifier: notifier,
	}
}

// PickupCredentialResult is returned by GeneratePickupCredential. IsExisting
// is true when an unexpired credential was re-fetched instead of minted.
type PickupCredentialResult struct {
	OrderID     uuid.UUID
	PickupCode  string
	PickupToken string
	ExpiresAt   time.Time
	IsExisting  bool
}

// PickupSummary is the read-only confirmation view returned by
// VerifyPickupCredential before the buyer commits the hand-off.
type PickupSummary struct {
	OrderID      uuid.UUID
	ListingTitle string
	SellerName   string
	Amount       float64
	ExpiresAt    time.Time
}

// OrderView pairs an order with its auto-completion countdown for display.
type OrderView struct {
	Order       *domain.Order
	Eligibility domain.Eligibility
}

// GeneratePickupCredential issues (or re-fetches) the credential a seller
// shows the buyer to confirm a hand-off. Idempotent within the credential's
// validity window; regeneration after expiry replaces the old credential
// atomically.
func (s *OrderLifecycle) GeneratePickupCredential(ctx context.Context, orderID, actorID uuid.UUID) (*PickupCredentialResult, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actorID != order.SellerID {
		return nil, domain.ErrForbidden
	}
	if !order.CanIssuePickupCredential() {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	if order.HasActiveCredential(now) {
		return &PickupCredentialResult{
			OrderID:     order.ID,
			PickupCode:  *order.PickupCode,
			PickupToken: *order.PickupToken,
			ExpiresAt:   *order.PickupCodeExpiresAt,
			IsExisting:  true,
		}, nil
	}

	cred, err := s.creds.Generate()
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(credential.TTL)
	if err := s.store.SetPickupCredential(ctx, order.ID, cred.Code, cred.Token, now, expiresAt); err != nil {
		return nil, err
	}

	s.notify(ctx, events.OrderEvent{
		OrderID:     order.ID,
		RecipientID: order.BuyerID,
		EventType:   events.PickupCodeReadyEvent,
		Kind:        events.KindPickupReady,
		Payload: events.PickupCodeReadyPayload{
			OrderID:   order.ID,
			ExpiresAt: expiresAt,
		},
	})

	return &PickupCredentialResult{
		OrderID:     order.ID,
		PickupCode:  cred.Code,
		PickupToken: cred.Token,
		ExpiresAt:   expiresAt,
		IsExisting:  false,
	}, nil
}

// VerifyPickupCredential resolves a scanned token or typed code to the order
// it belongs to. Read-only: committing the hand-off is a separate call, so a
// UI retry of verification can never complete an order.
func (s *OrderLifecycle) VerifyPickupCredential(ctx context.Context, cred string, actorID uuid.UUID) (*PickupSummary, error) {
	if cred == "" {
		return nil, domain.ErrCredentialInvalid
	}

	order, err := s.store.GetOrderByCredential(ctx, cred)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}

	if order.PickupCompleted {
		return nil, domain.ErrAlreadyCompleted
	}
	if order.PickupCodeExpiresAt == nil {
		return nil, domain.ErrCredentialNotFound
	}
	if s.clock.Now().After(*order.PickupCodeExpiresAt) {
		return nil, domain.ErrCredentialExpired
	}

	return &PickupSummary{
		OrderID:      order.ID,
		ListingTitle: order.ListingTitle,
		SellerName:   order.SellerName,
		Amount:       order.Amount,
		ExpiresAt:    *order.PickupCodeExpiresAt,
	}, nil
}

// CompletePickup commits the hand-off: the buyer presents the credential and
// the order moves to completed in a single conditional write. Sellers only
// generate credentials; they never complete.
func (s *OrderLifecycle) CompletePickup(ctx context.Context, orderID, actorID uuid.UUID, role domain.Role, cred string) (*domain.Order, error) {
	if role != domain.RoleBuyer {
		return nil, domain.ErrForbidden
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsPickup {
		return nil, domain.ErrInvalidState
	}
	if actorID != order.BuyerID {
		return nil, domain.ErrForbidden
	}
	if order.PickupCompleted || order.Status == domain.OrderStatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}
	if order.Status == domain.OrderStatusCancelled || order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.ErrInvalidState
	}
	if order.PickupToken == nil || order.PickupCodeExpiresAt == nil {
		return nil, domain.ErrCredentialNotFound
	}
	if !order.MatchesCredential(cred) {
		return nil, domain.ErrCredentialInvalid
	}

	now := s.clock.Now()
	if now.After(*order.PickupCodeExpiresAt) {
		return nil, domain.ErrCredentialExpired
	}

	if err := s.store.CompletePickup(ctx, order.ID, *order.PickupToken, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, s.resolveCompletionConflict(ctx, order.ID)
		}
		return nil, err
	}

	order.Status = domain.OrderStatusCompleted
	order.PickupCompleted = true
	order.PickupCompletedAt = &now
	order.PickupCode = nil
	order.PickupToken = nil
	order.PickupCodeCreatedAt = nil
	order.PickupCodeExpiresAt = nil
	order.UpdatedAt = now

	s.notifyCompletion(ctx, order)

	return order, nil
}

// CompleteByBuyer is the no-credential fallback: after the waiting period
// the buyer may complete unilaterally, unless a dispute or refund is open.
func (s *OrderLifecycle) CompleteByBuyer(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actorID != order.BuyerID {
		return nil, domain.ErrForbidden
	}

	now := s.clock.Now()
	eligibility := domain.EvaluateAutoCompletion(order, now)
	if eligibility.Blocked != nil {
		return nil, eligibility.Blocked
	}
	if !eligibility.Eligible {
		return nil, &domain.NotEligibleError{
			EligibleAt:     eligibility.EligibleAt,
			HoursRemaining: eligibility.HoursRemaining,
		}
	}

	if err := s.store.CompleteOrder(ctx, order.ID, order.Status, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, s.resolveCompletionConflict(ctx, order.ID)
		}
		return nil, err
	}

	order.Status = domain.OrderStatusCompleted
	order.PickupCode = nil
	order.PickupToken = nil
	order.PickupCodeCreatedAt = nil
	order.PickupCodeExpiresAt = nil
	order.UpdatedAt = now

	s.notifyCompletion(ctx, order)

	return order, nil
}

// Cancel moves a non-terminal order to cancelled. Either party may cancel
// before shipment; once shipped only the buyer can (refusal on delivery).
func (s *OrderLifecycle) Cancel(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsParty(actorID) {
		return nil, domain.ErrForbidden
	}
	if order.Status == domain.OrderStatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}
	if order.IsTerminal() {
		return nil, domain.ErrInvalidState
	}
	if order.Status == domain.OrderStatusShipped && actorID != order.BuyerID {
		return nil, domain.ErrForbidden
	}

	now := s.clock.Now()
	if err := s.store.CancelOrder(ctx, order.ID, order.Status, reason, now); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCancelled
	order.CancelledReason = reason
	order.PickupCode = nil
	order.PickupToken = nil
	order.PickupCodeCreatedAt = nil
	order.PickupCodeExpiresAt = nil
	order.UpdatedAt = now

	s.notify(ctx, events.OrderEvent{
		OrderID:     order.ID,
		RecipientID: order.Counterparty(actorID),
		EventType:   events.OrderCancelledEvent,
		Kind:        events.KindOrderUpdate,
		Payload: events.OrderStatusPayload{
			OrderID: order.ID,
			Status:  string(order.Status),
			Reason:  reason,
		},
	})

	return order, nil
}

// AdvanceShipping moves a shipped order along the carrier chain: the seller
// drives paid -> awaiting_shipping -> shipped, the buyer confirms delivery
// with shipped -> completed. Pickup orders never take this path.
func (s *OrderLifecycle) AdvanceShipping(ctx context.Context, orderID, actorID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.IsPickup {
		return nil, domain.ErrInvalidState
	}
	if !order.IsParty(actorID) {
		return nil, domain.ErrForbidden
	}

	switch next {
	case domain.OrderStatusAwaitingShipping, domain.OrderStatusShipped:
		if actorID != order.SellerID {
			return nil, domain.ErrForbidden
		}
	case domain.OrderStatusCompleted:
		if actorID != order.BuyerID {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrInvalidState
	}

	if order.Status == domain.OrderStatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}
	if !order.CanTransition(next) || order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	if next == domain.OrderStatusCompleted {
		err = s.store.CompleteOrder(ctx, order.ID, order.Status, now)
	} else {
		err = s.store.UpdateStatus(ctx, order.ID, order.Status, next, now)
	}
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && next == domain.OrderStatusCompleted {
			return nil, s.resolveCompletionConflict(ctx, order.ID)
		}
		return nil, err
	}

	prev := order.Status
	order.Status = next
	order.UpdatedAt = now

	eventType := events.OrderShippedEvent
	if next == domain.OrderStatusCompleted {
		eventType = events.OrderCompletedEvent
	}
	s.notify(ctx, events.OrderEvent{
		OrderID:     order.ID,
		RecipientID: order.Counterparty(actorID),
		EventType:   eventType,
		Kind:        events.KindOrderUpdate,
		Payload: events.OrderStatusPayload{
			OrderID: order.ID,
			Status:  string(next),
			Reason:  string(prev),
		},
	})

	return order, nil
}

// GetOrder returns the order with its auto-completion countdown for one of
// its parties.
func (s *OrderLifecycle) GetOrder(ctx context.Context, orderID, actorID uuid.UUID) (*OrderView, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsParty(actorID) {
		return nil, domain.ErrForbidden
	}

	return &OrderView{
		Order:       order,
		Eligibility: domain.EvaluateAutoCompletion(order, s.clock.Now()),
	}, nil
}

// MarkPaid applies the payment gateway's confirmation signal. Idempotent: a
// redelivered confirmation for an already-paid order is a no-op.
func (s *OrderLifecycle) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	err := s.store.MarkPaid(ctx, orderID, paidAt)
	if err == nil {
		order, gerr := s.store.GetOrderByID(ctx, orderID)
		if gerr != nil {
			return nil
		}
		s.notify(ctx, events.OrderEvent{
			OrderID:     order.ID,
			RecipientID: order.SellerID,
			EventType:   events.OrderPaidEvent,
			Kind:        events.KindSale,
			Payload: events.OrderStatusPayload{
				OrderID: order.ID,
				Status:  string(order.Status),
			},
		})
		return nil
	}

	if errors.Is(err, domain.ErrConflict) {
		order, gerr := s.store.GetOrderByID(ctx, orderID)
		if gerr != nil {
			return gerr
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			return nil
		}
		return domain.ErrInvalidState
	}

	return err
}

// resolveCompletionConflict re-reads after a lost conditional write to tell
// "someone completed first" apart from "the credential changed under us".
func (s *OrderLifecycle) resolveCompletionConflict(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PickupCompleted || order.Status == domain.OrderStatusCompleted {
		return domain.ErrAlreadyCompleted
	}
	return domain.ErrConflict
}

func (s *OrderLifecycle) notifyCompletion(ctx context.Context, order *domain.Order) {
	payload := events.OrderStatusPayload{
		OrderID: order.ID,
		Status:  string(order.Status),
	}
	s.notify(ctx, events.OrderEvent{
		OrderID:     order.ID,
		RecipientID: order.SellerID,
		EventType:   events.OrderCompletedEvent,
		Kind:        events.KindSale,
		Payload:     payload,
	})
	s.notify(ctx, events.OrderEvent{
		OrderID:     order.ID,
		RecipientID: order.BuyerID,
		EventType:   events.OrderCompletedEvent,
		Kind:        events.KindOrderUpdate,
		Payload:     payload,
	})
}

// notify is fire-and-forget: dispatch failures are logged and never alter
// the persisted transition.
func (s *OrderLifecycle) notify(ctx context.Context, event events.OrderEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		log.Printf("Notification dispatch error: OrderID=%s, Type=%s: %v", event.OrderID, event.EventType, err)
	}
}
