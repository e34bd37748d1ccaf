// Package events fans out domain.ChangeEvents to in-process subscribers.
package events

import (
	"sync"

	"github.com/pkordes/tripwit/internal/domain"
)

// Bus delivers every published event to every current subscriber.
// Delivery is synchronous and in subscription order; handlers must not
// block or publish back into the bus.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(domain.ChangeEvent)
	order  []int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(domain.ChangeEvent))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(domain.ChangeEvent)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to all subscribers.
func (b *Bus) Publish(ev domain.ChangeEvent) {
	b.mu.RLock()
	fns := make([]func(domain.ChangeEvent), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
