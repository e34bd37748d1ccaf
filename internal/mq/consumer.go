package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// consumeChannel is the part of *amqp.Channel the Consumer uses.
type consumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer turns notifications from other devices into reconcile signals.
type Consumer struct {
	ch     consumeChannel
	device string
	log    *slog.Logger
}

// NewConsumer builds a Consumer for device. Notifications authored by
// device itself are acknowledged and dropped.
func NewConsumer(ch consumeChannel, device string, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{ch: ch, device: device, log: log}
}

// Notifications binds a private queue to Exchange and returns a channel
// that receives a value whenever another device commits. Signals coalesce:
// while one is pending, further notifications add nothing. The channel is
// closed when ctx ends or the broker closes the delivery stream.
func (c *Consumer) Notifications(ctx context.Context) (<-chan struct{}, error) {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("mq.Consumer.Notifications: declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("mq.Consumer.Notifications: bind: %w", err)
	}
	deliveries, err := c.ch.Consume(q.Name, "tripwit-"+c.device, false, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("mq.Consumer.Notifications: consume: %w", err)
	}
	c.log.InfoContext(ctx, "consuming change notifications", "queue", q.Name)

	out := make(chan struct{}, 1)
	go c.forward(ctx, deliveries, out)
	return out, nil
}

func (c *Consumer) forward(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- struct{}) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.log.WarnContext(ctx, "change notification stream closed")
				return
			}
			var n Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				c.log.WarnContext(ctx, "malformed change notification", "error", err)
				_ = d.Reject(false)
				continue
			}
			if n.Author != c.device {
				select {
				case out <- struct{}{}:
				default:
				}
			}
			_ = d.Ack(false)
		}
	}
}
