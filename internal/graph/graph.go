// Package graph holds the live, readable object graph of one device session.
//
// Records are kept in an arena keyed by domain.Ref; every relationship is a
// Ref lookup, so there are no pointer cycles. Local writes queue pending
// changes for the durable save; remote transactions are applied without
// queuing anything.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
)

// Graph is safe for concurrent use.
type Graph struct {
	mu           sync.RWMutex
	records      map[domain.Ref]domain.Record
	children     map[domain.Ref]map[domain.Ref]struct{}
	parents      map[domain.Ref]domain.Ref
	stores       map[domain.Ref]string
	defaultStore string

	pending    []*domain.Change
	pendingIdx map[domain.Ref]int
}

// New returns an empty graph. Root records created locally are placed in
// defaultStore; children inherit the store of their parent.
func New(defaultStore string) *Graph {
	return &Graph{
		records:      make(map[domain.Ref]domain.Record),
		children:     make(map[domain.Ref]map[domain.Ref]struct{}),
		parents:      make(map[domain.Ref]domain.Ref),
		stores:       make(map[domain.Ref]string),
		defaultStore: defaultStore,
		pendingIdx:   make(map[domain.Ref]int),
	}
}

// Seed loads records that already exist in store without queuing changes.
// It is used at startup and when importing a shared trip.
func (g *Graph) Seed(store string, recs ...domain.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range recs {
		g.setLocked(rec)
		g.stores[rec.Ref()] = store
	}
}

// Len returns the number of records in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Lookup returns the record for ref.
func (g *Graph) Lookup(ref domain.Ref) (domain.Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[ref]
	return rec, ok
}

// StoreOf returns the location of the store ref lives in.
func (g *Graph) StoreOf(ref domain.Ref) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.stores[ref]
	return s, ok
}

// OwningTrip walks child→parent references from ref up to its trip.
// It returns false for wishlist items, unknown records and orphans.
func (g *Graph) OwningTrip(ref domain.Ref) (domain.Trip, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owningTripLocked(ref)
}

func (g *Graph) owningTripLocked(ref domain.Ref) (domain.Trip, bool) {
	cur := ref
	for {
		if cur.Kind == domain.KindTrip {
			rec, ok := g.records[cur]
			if !ok {
				return domain.Trip{}, false
			}
			return rec.(domain.Trip), true
		}
		want, ok := domain.ParentKind(cur.Kind)
		if !ok {
			return domain.Trip{}, false
		}
		rec, ok := g.records[cur]
		if !ok {
			return domain.Trip{}, false
		}
		parent, ok := rec.Parent()
		if !ok || parent.Kind != want {
			return domain.Trip{}, false
		}
		cur = parent
	}
}

// Get returns the record of type T with the given ID.
func Get[T domain.Record](g *Graph, id uuid.UUID) (T, error) {
	var zero T
	ref := domain.Ref{Kind: zero.Ref().Kind, ID: id}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[ref]
	if !ok {
		return zero, fmt.Errorf("graph: %s: %w", ref, domain.ErrNotFound)
	}
	return rec.(T), nil
}

// Children returns the direct children of parent that are of type T, in
// no particular order.
func Children[T domain.Record](g *Graph, parent domain.Ref) []T {
	var zero T
	kind := zero.Ref().Kind
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]T, 0, len(g.children[parent]))
	for ref := range g.children[parent] {
		if ref.Kind != kind {
			continue
		}
		if rec, ok := g.records[ref]; ok {
			out = append(out, rec.(T))
		}
	}
	return out
}

// All returns every record of type T.
func All[T domain.Record](g *Graph) []T {
	var zero T
	kind := zero.Ref().Kind
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []T
	for ref, rec := range g.records {
		if ref.Kind == kind {
			out = append(out, rec.(T))
		}
	}
	return out
}

// Put inserts rec or, if a record with the same Ref exists, replaces it.
// The parent of a non-root record must already exist.
func (g *Graph) Put(rec domain.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.putLocked(rec)
}

// Update applies fn to the current value of the T with the given ID and
// stores the result, all under one lock so a concurrent remote apply cannot
// interleave between the read and the write. fn must not call back into g.
func Update[T domain.Record](g *Graph, id uuid.UUID, fn func(*T) error) (T, error) {
	var zero T
	ref := domain.Ref{Kind: zero.Ref().Kind, ID: id}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[ref]
	if !ok {
		return zero, fmt.Errorf("graph: %s: %w", ref, domain.ErrNotFound)
	}
	v := rec.(T)
	if err := fn(&v); err != nil {
		return zero, err
	}
	if err := g.putLocked(v); err != nil {
		return zero, err
	}
	return v, nil
}

func (g *Graph) putLocked(rec domain.Record) error {
	ref := rec.Ref()
	if ref.ID == uuid.Nil {
		return fmt.Errorf("graph.Put: %s: missing id", ref.Kind)
	}
	store := g.defaultStore
	parent, hasParent := rec.Parent()
	if hasParent {
		if _, ok := g.records[parent]; !ok {
			return fmt.Errorf("graph.Put: parent %s: %w", parent, domain.ErrNotFound)
		}
		store = g.stores[parent]
	}

	old, exists := g.records[ref]
	if !exists {
		data, err := domain.EncodeRecord(rec)
		if err != nil {
			return fmt.Errorf("graph.Put: %w", err)
		}
		g.setLocked(rec)
		g.stores[ref] = store
		g.queueLocked(g.changeLocked(ref, domain.OpInsert, data, nil))
		return nil
	}

	fields, err := domain.DiffFields(old, rec)
	if err != nil {
		return fmt.Errorf("graph.Put: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}
	g.setLocked(rec)
	if hasParent {
		// A move follows the new parent's store.
		g.stores[ref] = store
	}
	g.queueLocked(g.changeLocked(ref, domain.OpUpdate, nil, fields))
	return nil
}

// Delete removes ref and, recursively, everything it owns.
func (g *Graph) Delete(ref domain.Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[ref]; !ok {
		return fmt.Errorf("graph.Delete: %s: %w", ref, domain.ErrNotFound)
	}
	for _, r := range g.subtreeLocked(ref) {
		c := g.changeLocked(r, domain.OpDelete, nil, nil)
		g.removeLocked(r)
		g.queueLocked(c)
	}
	return nil
}

// Relocate moves the whole subtree of a trip into store.
func (g *Graph) Relocate(tripID uuid.UUID, store string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	root := domain.Ref{Kind: domain.KindTrip, ID: tripID}
	if _, ok := g.records[root]; !ok {
		return fmt.Errorf("graph.Relocate: %s: %w", root, domain.ErrNotFound)
	}
	for _, r := range g.subtreeLocked(root) {
		if g.stores[r] == store {
			continue
		}
		g.stores[r] = store
		g.queueLocked(g.changeLocked(r, domain.OpUpdate, nil, domain.Fields{}))
	}
	return nil
}

// Subtree returns ref and all of its descendants, children before parents.
func (g *Graph) Subtree(ref domain.Ref) []domain.Ref {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.records[ref]; !ok {
		return nil
	}
	return g.subtreeLocked(ref)
}

// subtreeLocked lists ref's descendants in post-order followed by ref, with
// siblings sorted for a stable order.
func (g *Graph) subtreeLocked(ref domain.Ref) []domain.Ref {
	var out []domain.Ref
	var walk func(r domain.Ref)
	walk = func(r domain.Ref) {
		kids := make([]domain.Ref, 0, len(g.children[r]))
		for k := range g.children[r] {
			kids = append(kids, k)
		}
		sort.Slice(kids, func(i, j int) bool { return kids[i].String() < kids[j].String() })
		for _, k := range kids {
			walk(k)
		}
		out = append(out, r)
	}
	walk(ref)
	return out
}

// setLocked stores rec and keeps the parent/child index in step with its
// current parent reference.
func (g *Graph) setLocked(rec domain.Record) {
	ref := rec.Ref()
	if prev, ok := g.parents[ref]; ok {
		delete(g.children[prev], ref)
		delete(g.parents, ref)
	}
	if parent, ok := rec.Parent(); ok {
		set := g.children[parent]
		if set == nil {
			set = make(map[domain.Ref]struct{})
			g.children[parent] = set
		}
		set[ref] = struct{}{}
		g.parents[ref] = parent
	}
	g.records[ref] = rec
}

func (g *Graph) removeLocked(ref domain.Ref) {
	if prev, ok := g.parents[ref]; ok {
		delete(g.children[prev], ref)
		delete(g.parents, ref)
	}
	delete(g.children, ref)
	delete(g.records, ref)
	delete(g.stores, ref)
}

func (g *Graph) changeLocked(ref domain.Ref, op domain.Op, record []byte, fields domain.Fields) domain.Change {
	c := domain.Change{Ref: ref, Op: op, Store: g.stores[ref], Record: record, Fields: fields}
	if trip, ok := g.owningTripLocked(ref); ok {
		c.TripID = trip.ID
	}
	if p, ok := g.parents[ref]; ok {
		parent := p
		c.Parent = &parent
	}
	return c
}
