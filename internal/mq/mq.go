// Package mq broadcasts "history changed" notifications over RabbitMQ so
// other devices reconcile promptly instead of waiting for their next poll.
// A notification carries no data beyond the token and author; receivers
// always read the history itself.
package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the fanout exchange every device publishes to and binds a
// private queue on.
const Exchange = "tripwit.changes"

// Notification announces a committed history transaction.
type Notification struct {
	Token  int64  `json:"token"`
	Author string `json:"author"`
}

// Conn is an AMQP connection with the change exchange declared.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker at url and declares Exchange.
func Dial(url string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mq.Dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mq.Dial: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mq.Dial: declare exchange: %w", err)
	}
	return &Conn{conn: conn, ch: ch}, nil
}

// Channel returns the channel used for publishing.
func (c *Conn) Channel() *amqp.Channel {
	return c.ch
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	if err := c.ch.Close(); err != nil && !c.conn.IsClosed() {
		c.conn.Close()
		return fmt.Errorf("mq.Conn.Close: %w", err)
	}
	return c.conn.Close()
}
