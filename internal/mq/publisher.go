package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pkordes/tripwit/internal/domain"
)

// publishChannel is the part of *amqp.Channel the Publisher uses.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends notifications to Exchange.
type Publisher struct {
	ch  publishChannel
	now func() time.Time
}

// NewPublisher builds a Publisher on ch.
func NewPublisher(ch publishChannel) *Publisher {
	return &Publisher{ch: ch, now: time.Now}
}

// Notify publishes n.
func (p *Publisher) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("mq.Publisher.Notify: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, Exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   p.now(),
	})
	if err != nil {
		return fmt.Errorf("mq.Publisher.Notify: %w", err)
	}
	return nil
}

// Committer durably stores a transaction. Implemented by repo.HistoryStore.
type Committer interface {
	Commit(ctx context.Context, tx domain.Transaction) (int64, error)
}

// NotifyingCommitter announces every successful commit. A failed
// announcement is logged only: the commit stands and other devices still
// see it on their next poll.
type NotifyingCommitter struct {
	next Committer
	pub  *Publisher
	log  *slog.Logger
}

// NewNotifyingCommitter wraps next so commits are announced through pub.
func NewNotifyingCommitter(next Committer, pub *Publisher, log *slog.Logger) *NotifyingCommitter {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyingCommitter{next: next, pub: pub, log: log}
}

// Commit stores tx and then publishes its token.
func (c *NotifyingCommitter) Commit(ctx context.Context, tx domain.Transaction) (int64, error) {
	token, err := c.next.Commit(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := c.pub.Notify(ctx, Notification{Token: token, Author: tx.Author}); err != nil {
		c.log.WarnContext(ctx, "change notification failed", "token", token, "error", err)
	}
	return token, nil
}
