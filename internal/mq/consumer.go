package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler is a function that processes a message body
type MessageHandler func(ctx context.Context, body []byte) error

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection    *Connection
	Tag           string
	Queue         string
	DLQQueue      string
	Exchange      string
	RoutingKey    string
	PrefetchCount int
	Logger        *zap.Logger
	Handler       MessageHandler
}

// Consumer delivers messages of one queue to a handler. Failed messages are
// dead-lettered, never requeued.
type Consumer struct {
	channel  *amqp.Channel
	tag      string
	queue    string
	prefetch int
	logger   *zap.Logger
	handler  MessageHandler
}

// NewConsumer opens a channel and declares the exchange, queue, DLQ and binding
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:  ch,
		tag:      cfg.Tag,
		queue:    cfg.Queue,
		prefetch: cfg.PrefetchCount,
		logger:   cfg.Logger,
		handler:  cfg.Handler,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ %s: %w", cfg.DLQQueue, err)
	}

	// Dead-lettering goes through the default exchange straight to the DLQ.
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", cfg.Queue, cfg.Exchange, err)
	}

	return nil
}

// Start starts consuming messages until ctx is cancelled or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetch),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("delivery channel closed")
					return
				}
				c.handle(ctx, d)
			}
		}
	}()

	return nil
}

// handle runs the handler for one delivery and settles it
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if err := c.safeHandle(ctx, d.Body); err != nil {
		c.logger.Error("failed to process message, dead-lettering",
			zap.Error(err),
			zap.String("routing_key", d.RoutingKey),
			zap.Uint64("delivery_tag", d.DeliveryTag),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ACK message", zap.Error(err))
	}
}

func (c *Consumer) safeHandle(ctx context.Context, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, body)
}

// Close cancels the consumer and closes its channel
func (c *Consumer) Close() error {
	if c.channel == nil {
		return nil
	}
	if c.tag != "" {
		if err := c.channel.Cancel(c.tag, false); err != nil {
			c.logger.Warn("failed to cancel consumer", zap.Error(err))
		}
	}
	return c.channel.Close()
}
