package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes confirmations as persistent JSON messages to a queue,
// leaving actual email/SMS delivery to whatever consumes it.
type AMQPSink struct {
	channel *amqp091.Channel
	queue   string
}

func NewAMQPSink(conn *amqp091.Connection, queue string) (*AMQPSink, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	return &AMQPSink{
		channel: channel,
		queue:   queue,
	}, nil
}

func (s *AMQPSink) AppointmentConfirmed(ctx context.Context, booking ConfirmedBooking) error {
	body, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}

	message := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
	}

	if err := s.channel.PublishWithContext(ctx, "", s.queue, false, false, message); err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}

	return nil
}

func (s *AMQPSink) Close() error {
	return s.channel.Close()
}
