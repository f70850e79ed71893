package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cardbazaar/order-service/internal/events"
	"github.com/streadway/amqp"
)

type EventHandler func(event events.OrderEvent) error

type Consumer struct {
	client      *RabbitMQClient
	queueName   string
	serviceName string
}

func NewConsumer(client *RabbitMQClient, queueName, serviceName string) *Consumer {
	return &Consumer{
		client:      client,
		queueName:   queueName,
		serviceName: serviceName,
	}
}

func (c *Consumer) ConsumeEvents(routingKeys []string, handler EventHandler) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("no connection to RabbitMQ")
	}

	channel := c.client.Channel()

	queue, err := channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("queue declare error: %v", err)
	}

	for _, routingKey := range routingKeys {
		err = channel.QueueBind(
			queue.Name,               // queue name
			routingKey,               // routing key
			c.client.config.Exchange, // exchange
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("queue bind error (%s): %v", routingKey, err)
		}
		log.Printf("Queue %s bound to routing key: %s", queue.Name, routingKey)
	}

	messages, err := channel.Consume(
		queue.Name,    // queue
		c.serviceName, // consumer
		false,         // manual ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("consume start error: %v", err)
	}

	log.Printf("Consuming events on queue: %s", queue.Name)

	go func() {
		for {
			select {
			case msg := <-messages:
				c.handleMessage(msg, handler)
			case <-c.client.ctx.Done():
				log.Printf("Consumer stopped: %s", c.serviceName)
				return
			}
		}
	}()

	return nil
}

func (c *Consumer) handleMessage(msg amqp.Delivery, handler EventHandler) {
	var event events.OrderEvent

	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.Printf("Event deserialize error: %v", err)
		msg.Nack(false, false)
		return
	}

	log.Printf("Event received: %s from %s", event.EventType, event.Service)

	if err := handler(event); err != nil {
		log.Printf("Event process error: %v", err)

		if c.shouldRetry(msg) {
			c.republishWithRetry(msg, event)
		} else {
			log.Printf("Max retries reached, dead-lettering event: %s", event.EventType)
			msg.Nack(false, false)
		}
		return
	}

	msg.Ack(false)
}

func (c *Consumer) shouldRetry(msg amqp.Delivery) bool {
	if raw, ok := msg.Headers["x-retry-count"]; ok {
		if count, ok := raw.(int32); ok && count >= 3 {
			return false
		}
		if count, ok := raw.(int64); ok && count >= 3 {
			return false
		}
	}
	return true
}

func (c *Consumer) republishWithRetry(msg amqp.Delivery, event events.OrderEvent) {
	channel := c.client.Channel()

	time.Sleep(2 * time.Second)

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	switch count := headers["x-retry-count"].(type) {
	case int32:
		headers["x-retry-count"] = count + 1
	case int64:
		headers["x-retry-count"] = count + 1
	default:
		headers["x-retry-count"] = int32(1)
	}

	err := channel.Publish(
		msg.Exchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			DeliveryMode: msg.DeliveryMode,
			Headers:      headers,
		},
	)

	if err != nil {
		log.Printf("Retry publish error: %v", err)
		msg.Nack(false, false)
		return
	}

	msg.Ack(false)
	log.Printf("Re-published for retry: %s", event.EventType)
}
