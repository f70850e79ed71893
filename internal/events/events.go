package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// Published by this service after successful transitions.
	OrderPaidEvent       EventType = "order.paid"
	OrderShippedEvent    EventType = "order.shipped"
	OrderCompletedEvent  EventType = "order.completed"
	OrderCancelledEvent  EventType = "order.cancelled"
	PickupCodeReadyEvent EventType = "pickup.code_generated"

	// Consumed from the payment gateway.
	PaymentConfirmedEvent EventType = "payment.confirmed"
)

// NotificationKind selects the notification template on the receiving side.
type NotificationKind string

const (
	KindSale        NotificationKind = "sale"
	KindOrderUpdate NotificationKind = "order_update"
	KindPickupReady NotificationKind = "pickup_ready"
)

type OrderEvent struct {
	ID            uuid.UUID        `json:"id"`
	OrderID       uuid.UUID        `json:"order_id"`
	RecipientID   uuid.UUID        `json:"recipient_id,omitempty"`
	EventType     EventType        `json:"event_type"`
	Kind          NotificationKind `json:"kind,omitempty"`
	Payload       interface{}      `json:"payload,omitempty"`
	Service       string           `json:"service"`
	CorrelationID uuid.UUID        `json:"correlation_id"`
	Timestamp     time.Time        `json:"timestamp"`
}

type OrderStatusPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
}

type PickupCodeReadyPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PaymentConfirmedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Amount  float64   `json:"amount"`
	PaidAt  time.Time `json:"paid_at"`
}
