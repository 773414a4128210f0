package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"talkinghead/internal/generation"
)

// Publisher hands generation tasks to a durable RabbitMQ exchange. It is the
// queue-backed dispatch strategy: the broker's redelivery gives the pipeline
// the crash resilience the in-process dispatcher lacks.
type Publisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher opens a channel and declares the durable exchange.
func NewPublisher(conn *amqp.Connection, exchange, routingKey string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// Dispatch publishes the task with persistent delivery so it survives a
// broker restart.
func (p *Publisher) Dispatch(ctx context.Context, task generation.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Close releases the channel.
func (p *Publisher) Close() error {
	return p.channel.Close()
}

var _ generation.Dispatcher = (*Publisher)(nil)
