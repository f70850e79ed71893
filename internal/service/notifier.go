package service

import (
	"context"

	"github.com/cardbazaar/order-service/internal/events"
	"github.com/cardbazaar/order-service/internal/messaging"
	"github.com/google/uuid"
)

const serviceName = "order-service"

// EventNotifier publishes order events to the marketplace exchange, where
// the notification service fans them out to user preferences.
type EventNotifier struct {
	publisher *messaging.Publisher
}

func NewEventNotifier(publisher *messaging.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Notify(_ context.Context, event events.OrderEvent) error {
	event.Service = serviceName
	if event.CorrelationID == uuid.Nil {
		event.CorrelationID = uuid.New()
	}
	return n.publisher.PublishOrderEvent(event)
}
