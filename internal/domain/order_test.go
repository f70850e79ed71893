package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardChain(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusAwaitingShipping, true},
		{OrderStatusAwaitingShipping, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusCompleted, true},
		// Pickup short-circuit to completed.
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPaid, OrderStatusCompleted, true},
		{OrderStatusAwaitingShipping, OrderStatusCompleted, true},
		// No backward edges.
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusCompleted, OrderStatusShipped, false},
		// No skipping the carrier steps.
		{OrderStatusPaid, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusShipped, false},
	}

	for _, tc := range cases {
		order := &Order{Status: tc.from}
		assert.Equal(t, tc.allowed, order.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionCancellation(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusAwaitingShipping, OrderStatusShipped} {
		order := &Order{Status: status}
		assert.True(t, order.CanTransition(OrderStatusCancelled), "%s should be cancellable", status)
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	targets := []OrderStatus{
		OrderStatusPending, OrderStatusPaid, OrderStatusAwaitingShipping,
		OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled,
	}
	for _, terminal := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled} {
		order := &Order{Status: terminal}
		assert.True(t, order.IsTerminal())
		for _, to := range targets {
			assert.False(t, order.CanTransition(to), "%s -> %s must be forbidden", terminal, to)
		}
	}
}

func TestCanIssuePickupCredential(t *testing.T) {
	base := Order{IsPickup: true}

	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusAwaitingShipping} {
		order := base
		order.Status = status
		assert.True(t, order.CanIssuePickupCredential(), "status %s", status)
	}

	for _, status := range []OrderStatus{OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled} {
		order := base
		order.Status = status
		assert.False(t, order.CanIssuePickupCredential(), "status %s", status)
	}

	shipped := Order{IsPickup: false, Status: OrderStatusPaid}
	assert.False(t, shipped.CanIssuePickupCredential(), "shipped orders never issue credentials")

	completed := base
	completed.Status = OrderStatusPaid
	completed.PickupCompleted = true
	assert.False(t, completed.CanIssuePickupCredential())
}

func TestHasActiveCredential(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	code := "123456"
	token := "opaque-token"
	expires := now.Add(10 * time.Minute)

	order := &Order{PickupCode: &code, PickupToken: &token, PickupCodeExpiresAt: &expires}
	assert.True(t, order.HasActiveCredential(now))
	assert.False(t, order.HasActiveCredential(now.Add(11*time.Minute)))
	assert.False(t, order.HasActiveCredential(expires), "expiry instant itself is expired")

	assert.False(t, (&Order{}).HasActiveCredential(now))
}

func TestMatchesCredential(t *testing.T) {
	code := "654321"
	token := "tok_abc"
	order := &Order{PickupCode: &code, PickupToken: &token}

	assert.True(t, order.MatchesCredential("654321"))
	assert.True(t, order.MatchesCredential("tok_abc"))
	assert.False(t, order.MatchesCredential("000000"))
	assert.False(t, order.MatchesCredential(""))
	assert.False(t, (&Order{}).MatchesCredential("654321"))
}

func TestPartyHelpers(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	stranger := uuid.New()
	order := &Order{BuyerID: buyer, SellerID: seller}

	assert.True(t, order.IsParty(buyer))
	assert.True(t, order.IsParty(seller))
	assert.False(t, order.IsParty(stranger))

	assert.Equal(t, seller, order.Counterparty(buyer))
	assert.Equal(t, buyer, order.Counterparty(seller))
}
