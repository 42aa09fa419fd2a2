package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPForwarder republishes dispatched events to a durable RabbitMQ queue.
type AMQPForwarder struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAMQPForwarder dials url and declares queue.
func NewAMQPForwarder(url, queue string) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &AMQPForwarder{conn: conn, ch: ch, queue: queue}, nil
}

// Attach subscribes the forwarder to every user event.
func (f *AMQPForwarder) Attach(d Dispatcher) {
	for _, eventType := range AllEventTypes {
		d.Subscribe(eventType, f.Forward)
	}
}

// Forward publishes one event.
func (f *AMQPForwarder) Forward(ctx context.Context, event Event) error {
	msg, err := publishing(event)
	if err != nil {
		return err
	}
	return f.ch.PublishWithContext(ctx, "", f.queue, false, false, msg)
}

// Close releases the channel and connection.
func (f *AMQPForwarder) Close() {
	if f == nil {
		return
	}
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		_ = f.conn.Close()
	}
}

func publishing(event Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.Timestamp,
		Body:         body,
	}, nil
}
