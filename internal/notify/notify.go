// Package notify publishes order lifecycle events to a message broker so
// downstream consumers (inventory, customer notifications) can react.
// Publishing is best-effort: a broker outage never fails the order flow.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

const orderQueue = "order_events"

// Routing keys for the order event stream.
const (
	KeyOrderCreated       = "order.created"
	KeyOrderStatusChanged = "order.status_changed"
)

// EventPublisher is what the order service depends on; a nil publisher
// disables events entirely.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New connects to the broker and declares the durable order event queue.
func New(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		orderQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", orderQueue, err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

func (p *Publisher) Publish(routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return p.channel.Publish(
		"",         // default exchange
		orderQueue, // routing key: the queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         routingKey,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
}

func (p *Publisher) Close() error {
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing broker connection: %v", errs)
	}
	return nil
}
