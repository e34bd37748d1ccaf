package cloudsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
)

// ErrNotOwner is returned when a participant tries to share a trip further.
var ErrNotOwner = errors.New("only the trip owner can share it")

// ShareTrip moves a trip into the shared store, creating its grant on first
// use, and returns a new invitation carrying permission.
func (c *Controller) ShareTrip(ctx context.Context, tripID uuid.UUID, permission domain.Permission) (domain.Invitation, error) {
	if !permission.Valid() {
		return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %w", domain.ErrInvalidPermission)
	}
	ref := domain.Ref{Kind: domain.KindTrip, ID: tripID}
	if _, ok := c.graph.Lookup(ref); !ok {
		return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %s: %w", ref, domain.ErrNotFound)
	}
	if c.IsParticipant(ref) {
		return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %w", ErrNotOwner)
	}

	if !c.IsShared(ref) {
		if c.relocator == nil {
			return domain.Invitation{}, errors.New("cloudsync.Controller.ShareTrip: no relocator configured")
		}
		share := domain.Share{TripID: tripID, OwnerID: c.user, CreatedAt: c.now().UTC()}
		if err := c.shares.CreateShare(ctx, share); err != nil {
			return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %w", err)
		}
		c.mu.Lock()
		c.grants[tripID] = share
		c.mu.Unlock()
		if err := c.relocator.RelocateTrip(ctx, tripID, c.sharedStore); err != nil {
			return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %w", err)
		}
	}

	inv := domain.Invitation{Token: uuid.New(), TripID: tripID, OwnerID: c.user, Permission: permission}
	if err := c.shares.CreateInvitation(ctx, inv); err != nil {
		return domain.Invitation{}, fmt.Errorf("cloudsync.Controller.ShareTrip: %w", err)
	}
	c.log.InfoContext(ctx, "trip shared", "trip_id", tripID, "permission", permission)
	return inv, nil
}

// ReceiveInvitation records an invitation this user has opened but not yet
// accepted.
func (c *Controller) ReceiveInvitation(inv domain.Invitation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accepted[inv.TripID] {
		c.invitations[inv.TripID] = inv
	}
}

// AcceptShare accepts an invitation and imports the shared trip if its
// records are already available. Only one acceptance runs at a time: a
// call made while another is in flight does nothing and returns false.
func (c *Controller) AcceptShare(ctx context.Context, inv domain.Invitation) (bool, error) {
	if !c.accepting.CompareAndSwap(false, true) {
		c.log.InfoContext(ctx, "share acceptance already in progress", "trip_id", inv.TripID)
		return false, nil
	}
	defer c.accepting.Store(false)

	share, err := c.shares.AcceptInvitation(ctx, inv.Token, c.user)
	if err != nil {
		c.log.WarnContext(ctx, "share acceptance failed", "trip_id", inv.TripID, "error", err)
		return false, fmt.Errorf("cloudsync.Controller.AcceptShare: %w", err)
	}
	c.mu.Lock()
	c.grants[share.TripID] = share
	c.accepted[share.TripID] = true
	delete(c.invitations, share.TripID)
	c.mu.Unlock()

	imported, err := c.importTrip(ctx, share.TripID)
	if err != nil {
		// Records replicate eventually; PollImport retries.
		c.log.WarnContext(ctx, "shared trip import deferred", "trip_id", share.TripID, "error", err)
	}
	c.log.InfoContext(ctx, "share accepted", "trip_id", share.TripID, "imported", imported)
	return true, nil
}

// ShareState reports where tripID is in the sharing lifecycle on this
// device.
func (c *Controller) ShareState(tripID uuid.UUID) domain.ShareState {
	ref := domain.Ref{Kind: domain.KindTrip, ID: tripID}
	_, present := c.graph.Lookup(ref)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.grants[tripID]; ok && s.OwnerID == c.user {
		for _, p := range s.Participants {
			if p.Accepted {
				return domain.ShareSynced
			}
		}
		return domain.ShareInvitationSent
	}
	if c.accepted[tripID] {
		if present {
			return domain.ShareSynced
		}
		return domain.ShareAwaitingImport
	}
	if _, ok := c.invitations[tripID]; ok {
		return domain.ShareInvitationOpen
	}
	if s, ok := c.grants[tripID]; ok {
		if p, ok := s.ParticipantFor(c.user); ok && p.Accepted && present {
			return domain.ShareSynced
		}
	}
	return domain.ShareUnshared
}

// PollImport re-checks an accepted trip whose records had not arrived and
// imports them if they have. It returns the resulting state.
func (c *Controller) PollImport(ctx context.Context, tripID uuid.UUID) (domain.ShareState, error) {
	if c.ShareState(tripID) != domain.ShareAwaitingImport {
		return c.ShareState(tripID), nil
	}
	if _, err := c.importTrip(ctx, tripID); err != nil {
		return domain.ShareAwaitingImport, fmt.Errorf("cloudsync.Controller.PollImport: %w", err)
	}
	return c.ShareState(tripID), nil
}

// pollImports retries the import of every trip awaiting one.
func (c *Controller) pollImports(ctx context.Context) {
	c.mu.RLock()
	waiting := make([]uuid.UUID, 0, len(c.accepted))
	for id := range c.accepted {
		waiting = append(waiting, id)
	}
	c.mu.RUnlock()
	for _, id := range waiting {
		if _, err := c.PollImport(ctx, id); err != nil {
			c.log.WarnContext(ctx, "shared trip import failed", "trip_id", id, "error", err)
		}
	}
}

// importTrip seeds the graph with a shared trip's records. It reports false
// when the store does not hold the trip yet.
func (c *Controller) importTrip(ctx context.Context, tripID uuid.UUID) (bool, error) {
	recs, err := c.snapshots.LoadTrip(ctx, c.sharedStore, tripID)
	if err != nil {
		return false, err
	}
	if len(recs) == 0 {
		return false, nil
	}
	c.graph.Seed(c.sharedStore, recs...)
	c.events.Publish(domain.ChangeEvent{
		TripID: tripID,
		Ref:    domain.Ref{Kind: domain.KindTrip, ID: tripID},
		Op:     domain.OpInsert,
		Remote: true,
		At:     c.now().UTC(),
	})
	return true, nil
}
