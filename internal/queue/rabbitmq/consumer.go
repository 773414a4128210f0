package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"talkinghead/internal/generation"
	"talkinghead/internal/infra"
	"talkinghead/internal/storage"
)

// prefetchCount bounds how many jobs one worker process renders at once. Each
// delivery runs on its own goroutine because a single poll can take hours.
const prefetchCount = 8

// Consumer pulls generation tasks off the queue and runs them through the
// runner. Ack/nack is the queue's view of the runner outcome: delivery is
// at-least-once, and a redelivered task that already reached a terminal state
// is a no-op inside the runner.
type Consumer struct {
	channel *amqp.Channel
	queue   string
	runner  *generation.Runner
	files   *storage.FileStore
	logger  infra.Logger
}

// NewConsumer opens a channel, declares and binds the durable queue, and
// applies the prefetch bound.
func NewConsumer(conn *amqp.Connection, exchange, routingKey, queue string, runner *generation.Runner, files *storage.FileStore, logger infra.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		channel: ch,
		queue:   queue,
		runner:  runner,
		files:   files,
		logger:  logger,
	}, nil
}

// Start consumes deliveries until the context is cancelled or the channel
// closes.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("queue: consumer shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn().Msg("queue: channel closed")
				return nil
			}

			var task generation.Task
			if err := json.Unmarshal(msg.Body, &task); err != nil {
				c.logger.Error().Err(err).Msg("queue: malformed task, dropping")
				_ = msg.Nack(false, false)
				continue
			}

			go c.handle(ctx, task, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, task generation.Task, msg amqp.Delivery) {
	log := c.logger.With().Str("job_id", task.JobID).Logger()
	log.Info().Bool("redelivered", msg.Redelivered).Msg("queue: picked task")

	image, audio, err := generation.LoadTask(ctx, c.files, task)
	if err != nil {
		// Artifacts are written before the task is published, so a missing
		// key on a redelivery means they are gone for good.
		if msg.Redelivered {
			_ = c.runner.FailJob(ctx, task.JobID, err)
			_ = msg.Nack(false, false)
			return
		}
		log.Warn().Err(err).Msg("queue: artifacts not readable, requeueing once")
		_ = msg.Nack(false, true)
		return
	}

	if err := c.runner.Run(ctx, task.JobID, image, audio); err != nil {
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}
