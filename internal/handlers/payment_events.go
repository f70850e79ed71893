package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cardbazaar/order-service/internal/events"
	"github.com/cardbazaar/order-service/internal/messaging"
	"github.com/google/uuid"
)

// PaymentMarker is the single lifecycle entry point the payment consumer
// drives. The gateway confirms capture out-of-band; this service only
// records the signal.
type PaymentMarker interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error
}

type PaymentEventHandler struct {
	lifecycle PaymentMarker
}

func NewPaymentEventHandler(lifecycle PaymentMarker) *PaymentEventHandler {
	return &PaymentEventHandler{
		lifecycle: lifecycle,
	}
}

// StartConsuming binds the payment confirmation stream.
func (h *PaymentEventHandler) StartConsuming(consumer *messaging.Consumer) error {
	routingKeys := []string{
		"payments.*.payment.confirmed",
	}
	return consumer.ConsumeEvents(routingKeys, h.HandlePaymentEvent)
}

func (h *PaymentEventHandler) HandlePaymentEvent(event events.OrderEvent) error {
	if event.EventType != events.PaymentConfirmedEvent {
		log.Printf("Ignoring unexpected payment event: %s", event.EventType)
		return nil
	}

	payload, err := decodePaymentPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("payment payload decode error: %v", err)
	}

	orderID := event.OrderID
	if orderID == uuid.Nil {
		orderID = payload.OrderID
	}
	paidAt := payload.PaidAt
	if paidAt.IsZero() {
		paidAt = event.Timestamp
	}

	if err := h.lifecycle.MarkPaid(context.Background(), orderID, paidAt); err != nil {
		return fmt.Errorf("mark paid error: OrderID=%s: %v", orderID, err)
	}

	log.Printf("Payment confirmed: OrderID=%s, PaidAt=%s", orderID, paidAt)
	return nil
}

// decodePaymentPayload tolerates the generic map the JSON consumer produces.
func decodePaymentPayload(raw interface{}) (events.PaymentConfirmedPayload, error) {
	var payload events.PaymentConfirmedPayload
	if raw == nil {
		return payload, nil
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
