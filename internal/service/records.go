package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// insert adds a child record after checking that its parent exists and is
// writable. It returns the owning trip.
func (m *Manager) insert(rec domain.Record) (domain.Trip, error) {
	parent, ok := rec.Parent()
	if !ok {
		return domain.Trip{}, fmt.Errorf("%s has no parent", rec.Ref())
	}
	trip, err := m.tripOf(parent)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := m.checkEdit(parent); err != nil {
		return domain.Trip{}, err
	}
	if err := m.graph.Put(rec); err != nil {
		return domain.Trip{}, err
	}
	return trip, nil
}

// updateOwned runs a guarded read-modify-write on a trip-owned record.
func updateOwned[T domain.Record](m *Manager, id uuid.UUID, fn func(*T) error) (T, domain.Trip, error) {
	var zero T
	ref := domain.Ref{Kind: zero.Ref().Kind, ID: id}
	trip, err := m.tripOf(ref)
	if err != nil {
		return zero, domain.Trip{}, err
	}
	if err := m.checkEdit(ref); err != nil {
		return zero, domain.Trip{}, err
	}
	v, err := graph.Update(m.graph, id, fn)
	if err != nil {
		return zero, domain.Trip{}, err
	}
	return v, trip, nil
}

// deleteOwned removes a trip-owned record and its descendants.
func (m *Manager) deleteOwned(ref domain.Ref) (domain.Trip, error) {
	trip, err := m.tripOf(ref)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := m.checkEdit(ref); err != nil {
		return domain.Trip{}, err
	}
	if err := m.graph.Delete(ref); err != nil {
		return domain.Trip{}, err
	}
	return trip, nil
}
