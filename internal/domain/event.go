package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeEvent is emitted after every successful mutation, local or remote.
// TripID is the affected root trip, or uuid.Nil for wishlist changes.
// Subscribers use it instead of watching UpdatedAt.
type ChangeEvent struct {
	TripID uuid.UUID
	Ref    Ref
	Op     Op
	Remote bool
	At     time.Time
}
