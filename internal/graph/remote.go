package graph

import (
	"fmt"

	"github.com/pkordes/tripwit/internal/domain"
)

// ApplyResult summarises one ApplyRemote call.
type ApplyResult struct {
	Applied  []domain.Change
	Skipped  int
	Rejected []Rejected
}

// Rejected is a remote change that could not be applied.
type Rejected struct {
	Token  int64
	Change domain.Change
	Err    error
}

// ApplyRemote merges transactions authored elsewhere into the graph.
//
// The store's value always wins: an insert replaces the local record
// outright, an update overwrites every property it names, and a delete
// removes the record with its subtree. Unsaved local edits to the same
// properties are discarded so the next local save cannot undo the merge.
// Updates for records the graph does not hold are skipped. A change that
// cannot be decoded is rejected without touching the graph and the rest
// of the batch still applies.
func (g *Graph) ApplyRemote(txs ...domain.Transaction) ApplyResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	var res ApplyResult
	for _, tx := range txs {
		for _, c := range tx.Changes {
			applied, err := g.applyLocked(c)
			switch {
			case err != nil:
				res.Rejected = append(res.Rejected, Rejected{Token: tx.Token, Change: c, Err: err})
			case applied:
				res.Applied = append(res.Applied, c)
			default:
				res.Skipped++
			}
		}
	}
	return res
}

func (g *Graph) applyLocked(c domain.Change) (bool, error) {
	switch c.Op {
	case domain.OpInsert:
		rec, err := domain.DecodeRecord(c.Ref.Kind, c.Record)
		if err != nil {
			return false, err
		}
		g.setLocked(rec)
		if c.Store != "" {
			g.stores[c.Ref] = c.Store
		}
		g.dropPendingLocked(c.Ref, nil)
		return true, nil

	case domain.OpUpdate:
		cur, ok := g.records[c.Ref]
		if !ok {
			return false, nil
		}
		if len(c.Fields) > 0 {
			merged, err := domain.ApplyFields(cur, c.Fields)
			if err != nil {
				return false, err
			}
			g.setLocked(merged)
		}
		if c.Store != "" {
			g.stores[c.Ref] = c.Store
		}
		fields := c.Fields
		if fields == nil {
			fields = domain.Fields{}
		}
		g.dropPendingLocked(c.Ref, fields)
		return true, nil

	case domain.OpDelete:
		if _, ok := g.records[c.Ref]; !ok {
			return false, nil
		}
		for _, r := range g.subtreeLocked(c.Ref) {
			g.removeLocked(r)
			g.dropPendingLocked(r, nil)
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown op %q", c.Op)
}
