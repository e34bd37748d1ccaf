package domain

import (
	"time"

	"github.com/google/uuid"
)

// Well-known list names offered when creating a list. Any other name is a
// custom list.
const (
	ListChecklist = "Checklist"
	ListPacking   = "Packing"
	ListShopping  = "Shopping"
	ListTodo      = "To-Do"
)

// TripList is a named list owned by a trip.
type TripList struct {
	ID        uuid.UUID `json:"id"`
	TripID    uuid.UUID `json:"trip_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
}

func (l TripList) Ref() Ref            { return Ref{Kind: KindList, ID: l.ID} }
func (l TripList) Parent() (Ref, bool) { return Ref{Kind: KindTrip, ID: l.TripID}, true }

// TripListItem is an ordered entry in a TripList.
type TripListItem struct {
	ID        uuid.UUID `json:"id"`
	ListID    uuid.UUID `json:"list_id"`
	Text      string    `json:"text"`
	Checked   bool      `json:"checked"`
	SortOrder int       `json:"sort_order"`
}

func (i TripListItem) Ref() Ref            { return Ref{Kind: KindListItem, ID: i.ID} }
func (i TripListItem) Parent() (Ref, bool) { return Ref{Kind: KindList, ID: i.ListID}, true }

// WishlistItem is a saved place not owned by any trip.
type WishlistItem struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	Coordinate  Coordinate `json:"coordinate"`
	Category    Category   `json:"category"`
	Notes       string     `json:"notes"`
	Address     string     `json:"address"`
	Phone       string     `json:"phone"`
	Website     string     `json:"website"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (w WishlistItem) Ref() Ref            { return Ref{Kind: KindWishlist, ID: w.ID} }
func (w WishlistItem) Parent() (Ref, bool) { return Ref{}, false }
