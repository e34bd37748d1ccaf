package graph

import (
	"github.com/pkordes/tripwit/internal/domain"
)

// HasPending reports whether local changes are waiting to be saved.
func (g *Graph) HasPending() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.pendingIdx) > 0
}

// TakePending removes and returns the queued local changes in the order
// they were first made.
func (g *Graph) TakePending() []domain.Change {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Change, 0, len(g.pendingIdx))
	for _, c := range g.pending {
		if c != nil {
			out = append(out, *c)
		}
	}
	g.pending = nil
	g.pendingIdx = make(map[domain.Ref]int)
	return out
}

// Requeue puts changes whose save failed back in front of anything queued
// since, so the next save carries both in order.
func (g *Graph) Requeue(changes []domain.Change) {
	g.mu.Lock()
	defer g.mu.Unlock()
	newer := g.pending
	g.pending = nil
	g.pendingIdx = make(map[domain.Ref]int)
	for _, c := range changes {
		g.queueLocked(c)
	}
	for _, c := range newer {
		if c != nil {
			g.queueLocked(*c)
		}
	}
}

// queueLocked appends c, coalescing it with an earlier unsaved change to
// the same record.
func (g *Graph) queueLocked(c domain.Change) {
	i, ok := g.pendingIdx[c.Ref]
	if !ok {
		g.appendLocked(c)
		return
	}
	prev := g.pending[i]
	switch {
	case c.Op == domain.OpDelete && prev.Op == domain.OpInsert:
		// Never saved, so nothing to delete.
		g.pending[i] = nil
		delete(g.pendingIdx, c.Ref)
	case c.Op == domain.OpDelete:
		g.pending[i] = &c
	case c.Op == domain.OpUpdate && prev.Op == domain.OpInsert:
		if rec, ok := g.records[c.Ref]; ok {
			if data, err := domain.EncodeRecord(rec); err == nil {
				prev.Record = data
			}
		}
		prev.Store = c.Store
		prev.Parent = c.Parent
	case c.Op == domain.OpUpdate && prev.Op == domain.OpUpdate:
		if prev.Fields == nil {
			prev.Fields = domain.Fields{}
		}
		for k, v := range c.Fields {
			prev.Fields[k] = v
		}
		prev.Store = c.Store
		prev.Parent = c.Parent
	default:
		// Insert after delete: the record is back, save it whole.
		g.pending[i] = &c
	}
}

func (g *Graph) appendLocked(c domain.Change) {
	g.pending = append(g.pending, &c)
	g.pendingIdx[c.Ref] = len(g.pending) - 1
}

// dropPendingLocked discards unsaved local values that a remote change has
// overwritten. A nil fields set drops the whole pending change.
func (g *Graph) dropPendingLocked(ref domain.Ref, fields domain.Fields) {
	i, ok := g.pendingIdx[ref]
	if !ok {
		return
	}
	prev := g.pending[i]
	if fields == nil {
		g.pending[i] = nil
		delete(g.pendingIdx, ref)
		return
	}
	switch prev.Op {
	case domain.OpUpdate:
		// An emptied update still carries the store location, so it stays.
		for k := range fields {
			delete(prev.Fields, k)
		}
	case domain.OpInsert:
		if rec, ok := g.records[ref]; ok {
			if data, err := domain.EncodeRecord(rec); err == nil {
				prev.Record = data
			}
		}
	}
}
