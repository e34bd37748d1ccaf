package cloudsync

import (
	"github.com/pkordes/tripwit/internal/domain"
)

// StoreOf returns the store location ref resides in.
func (c *Controller) StoreOf(ref domain.Ref) (string, bool) {
	return c.graph.StoreOf(ref)
}

// IsShared reports whether ref resides in the shared store.
func (c *Controller) IsShared(ref domain.Ref) bool {
	store, ok := c.graph.StoreOf(ref)
	return ok && store == c.sharedStore
}

// IsParticipant reports whether ref is shared and this user is not the
// owner of its trip's grant.
func (c *Controller) IsParticipant(ref domain.Ref) bool {
	if !c.IsShared(ref) {
		return false
	}
	p, ok := c.participant(ref)
	return !ok || p.Role != domain.RoleOwner
}

// CanEdit reports whether this user may write to ref. Unshared records are
// always editable. Shared records are editable by the grant owner and by
// participants holding read-write permission.
func (c *Controller) CanEdit(ref domain.Ref) bool {
	if !c.IsShared(ref) {
		return true
	}
	p, ok := c.participant(ref)
	if !ok {
		return false
	}
	return p.Role == domain.RoleOwner || p.Permission == domain.PermissionReadWrite
}

// participant returns this user's entry on the grant of ref's trip.
func (c *Controller) participant(ref domain.Ref) (domain.Participant, bool) {
	trip, ok := c.graph.OwningTrip(ref)
	if !ok {
		return domain.Participant{}, false
	}
	s, ok := c.grant(trip.ID)
	if !ok {
		return domain.Participant{}, false
	}
	return s.ParticipantFor(c.user)
}

// visible reports whether a history change belongs to a partition this
// user reads: the private store, or a shared trip the user has joined.
func (c *Controller) visible(ch domain.Change) bool {
	switch ch.Store {
	case c.privateStore:
		return true
	case c.sharedStore:
		s, ok := c.grant(ch.TripID)
		if !ok {
			return false
		}
		p, ok := s.ParticipantFor(c.user)
		return ok && p.Accepted
	}
	return false
}
