// Package service contains the Domain Manager, the single mutation surface of
// the tripwit backend. Every mutation validates its input, checks write
// permission, changes the live graph, saves the resulting changes as one
// durable transaction and publishes a domain.ChangeEvent.
// No SQL lives here: the durable store is reached through the Committer
// interface.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// Committer durably stores one transaction and returns its history token.
// Implemented by repo.HistoryStore.
type Committer interface {
	Commit(ctx context.Context, tx domain.Transaction) (int64, error)
}

// Guard decides whether the current user may write to a record.
// Implemented by cloudsync.Controller.
type Guard interface {
	CanEdit(ref domain.Ref) bool
}

// Publisher receives change events. Implemented by events.Bus.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// Options configures optional Manager collaborators. Zero values select
// defaults: every record editable, events dropped, slog.Default, time.Now
// and three save attempts with exponential backoff from 100ms.
type Options struct {
	Guard      Guard
	Events     Publisher
	Logger     *slog.Logger
	Now        func() time.Time
	NewBackoff func() retry.Backoff
}

// Manager owns all writes to one device session's graph.
type Manager struct {
	mu         sync.Mutex
	graph      *graph.Graph
	store      Committer
	author     string
	guard      Guard
	events     Publisher
	log        *slog.Logger
	now        func() time.Time
	newBackoff func() retry.Backoff
}

// NewManager constructs a Manager. author tags every transaction it commits
// so reconciliation can recognize this device's own writes.
func NewManager(g *graph.Graph, store Committer, author string, opts Options) *Manager {
	m := &Manager{
		graph:      g,
		store:      store,
		author:     author,
		guard:      opts.Guard,
		events:     opts.Events,
		log:        opts.Logger,
		now:        opts.Now,
		newBackoff: opts.NewBackoff,
	}
	if m.guard == nil {
		m.guard = allowAll{}
	}
	if m.events == nil {
		m.events = discard{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newBackoff == nil {
		m.newBackoff = func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
		}
	}
	return m
}

type allowAll struct{}

func (allowAll) CanEdit(domain.Ref) bool { return true }

type discard struct{}

func (discard) Publish(domain.ChangeEvent) {}

// Graph returns the live graph for reads.
func (m *Manager) Graph() *graph.Graph {
	return m.graph
}

// Save commits any changes still pending from an earlier failed save.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx)
}

// save commits all pending changes as one transaction. On failure the
// changes are requeued and the in-memory graph keeps the mutation.
func (m *Manager) save(ctx context.Context) error {
	changes := m.graph.TakePending()
	if len(changes) == 0 {
		return nil
	}
	tx := domain.Transaction{Author: m.author, CreatedAt: m.now().UTC(), Changes: changes}

	err := retry.Do(ctx, m.newBackoff(), func(ctx context.Context) error {
		token, err := m.store.Commit(ctx, tx)
		if err != nil {
			return retry.RetryableError(err)
		}
		tx.Token = token
		return nil
	})
	if err != nil {
		m.graph.Requeue(changes)
		m.log.ErrorContext(ctx, "save failed", "error", err, "changes", len(changes))
		return fmt.Errorf("service.Manager.save: %w: %w", domain.ErrPersistence, err)
	}
	m.log.DebugContext(ctx, "saved", "token", tx.Token, "changes", len(changes))
	return nil
}

// finish bumps the owning trip's UpdatedAt, saves, and publishes one event
// for the mutation. The event is published even when the save fails, since
// the graph already reflects the change.
func (m *Manager) finish(ctx context.Context, tripID uuid.UUID, ref domain.Ref, op domain.Op) error {
	return m.finishTrips(ctx, []uuid.UUID{tripID}, ref, op)
}

// finishTrips is finish for a mutation that changed the subtrees of
// several trips. Each trip is touched and gets its own event.
func (m *Manager) finishTrips(ctx context.Context, tripIDs []uuid.UUID, ref domain.Ref, op domain.Op) error {
	now := m.now().UTC()
	for _, id := range tripIDs {
		if id == uuid.Nil || (op == domain.OpDelete && ref.Kind == domain.KindTrip) {
			continue
		}
		if _, err := graph.Update(m.graph, id, func(t *domain.Trip) error {
			t.UpdatedAt = now
			return nil
		}); err != nil {
			return err
		}
	}
	err := m.save(ctx)
	for _, id := range tripIDs {
		m.events.Publish(domain.ChangeEvent{TripID: id, Ref: ref, Op: op, At: now})
	}
	return err
}

// checkEdit returns ErrReadOnly when the guard denies writes to ref.
func (m *Manager) checkEdit(ref domain.Ref) error {
	if !m.guard.CanEdit(ref) {
		return fmt.Errorf("%s: %w", ref, domain.ErrReadOnly)
	}
	return nil
}

// tripOf returns the trip owning ref.
func (m *Manager) tripOf(ref domain.Ref) (domain.Trip, error) {
	trip, ok := m.graph.OwningTrip(ref)
	if !ok {
		return domain.Trip{}, fmt.Errorf("owning trip of %s: %w", ref, domain.ErrNotFound)
	}
	return trip, nil
}
