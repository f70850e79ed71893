package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardbazaar/order-service/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMarker struct {
	markPaidFn func(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
}

func (m *mockMarker) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	return m.markPaidFn(ctx, orderID, paidAt)
}

func TestHandlePaymentEvent(t *testing.T) {
	orderID := uuid.New()
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var called bool

	handler := NewPaymentEventHandler(&mockMarker{
		markPaidFn: func(_ context.Context, gotOrder uuid.UUID, gotPaidAt time.Time) error {
			called = true
			assert.Equal(t, orderID, gotOrder)
			assert.Equal(t, paidAt, gotPaidAt.UTC())
			return nil
		},
	})

	err := handler.HandlePaymentEvent(events.OrderEvent{
		OrderID:   orderID,
		EventType: events.PaymentConfirmedEvent,
		// The JSON consumer delivers payloads as generic maps.
		Payload: map[string]interface{}{
			"order_id": orderID.String(),
			"amount":   42.5,
			"paid_at":  paidAt.Format(time.RFC3339),
		},
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestHandlePaymentEventIgnoresOtherTypes(t *testing.T) {
	handler := NewPaymentEventHandler(&mockMarker{
		markPaidFn: func(context.Context, uuid.UUID, time.Time) error {
			t.Fatal("MarkPaid must not be called")
			return nil
		},
	})

	err := handler.HandlePaymentEvent(events.OrderEvent{
		EventType: events.OrderCompletedEvent,
	})
	assert.NoError(t, err)
}

func TestHandlePaymentEventFallsBackToEnvelope(t *testing.T) {
	orderID := uuid.New()
	timestamp := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	handler := NewPaymentEventHandler(&mockMarker{
		markPaidFn: func(_ context.Context, gotOrder uuid.UUID, gotPaidAt time.Time) error {
			assert.Equal(t, orderID, gotOrder)
			assert.Equal(t, timestamp, gotPaidAt.UTC())
			return nil
		},
	})

	// No payload timestamps: the envelope supplies order id and paid-at.
	err := handler.HandlePaymentEvent(events.OrderEvent{
		OrderID:   orderID,
		EventType: events.PaymentConfirmedEvent,
		Timestamp: timestamp,
	})
	assert.NoError(t, err)
}

func TestHandlePaymentEventPropagatesMarkPaidErrors(t *testing.T) {
	handler := NewPaymentEventHandler(&mockMarker{
		markPaidFn: func(context.Context, uuid.UUID, time.Time) error {
			return errors.New("db down")
		},
	})

	err := handler.HandlePaymentEvent(events.OrderEvent{
		OrderID:   uuid.New(),
		EventType: events.PaymentConfirmedEvent,
	})
	assert.Error(t, err)
}
