package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's role on a share grant.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
)

// Permission is the access level a grant confers on a participant.
type Permission string

const (
	PermissionReadOnly  Permission = "read_only"
	PermissionReadWrite Permission = "read_write"
)

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

// PrivateStore returns the location of userID's private partition under
// the base store name. Each user reads and writes only their own.
func PrivateStore(base, userID string) string {
	return base + ":" + userID
}

// Participant is one user's entry on a share grant.
type Participant struct {
	UserID     string     `json:"user_id"`
	Role       Role       `json:"role"`
	Permission Permission `json:"permission"`
	Accepted   bool       `json:"accepted"`
}

// Share is the capability grant that makes a trip's records visible to
// users other than its owner.
type Share struct {
	TripID       uuid.UUID     `json:"trip_id"`
	OwnerID      string        `json:"owner_id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ParticipantFor returns the entry for userID, if any.
func (s Share) ParticipantFor(userID string) (Participant, bool) {
	if userID == s.OwnerID {
		return Participant{UserID: userID, Role: RoleOwner, Permission: PermissionReadWrite, Accepted: true}, true
	}
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Invitation is the link a trip owner hands to a recipient.
type Invitation struct {
	Token      uuid.UUID  `json:"token"`
	TripID     uuid.UUID  `json:"trip_id"`
	OwnerID    string     `json:"owner_id"`
	Permission Permission `json:"permission"`
}

// ShareState is the per-device replication lifecycle of a shared trip.
type ShareState string

const (
	ShareUnshared       ShareState = "unshared"
	ShareInvitationSent ShareState = "invitation_sent"
	ShareInvitationOpen ShareState = "invitation_pending"
	ShareAwaitingImport ShareState = "accepted_awaiting_import"
	ShareSynced         ShareState = "synced"
)
