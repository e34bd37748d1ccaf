package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coordinate is a latitude/longitude pair. The zero value (0,0) is the
// "no location set" sentinel.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsSet reports whether c holds a real location.
func (c Coordinate) IsSet() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// Day is one calendar day of a trip. DayNumber is 1-based and dense within
// the trip once a save completes.
type Day struct {
	ID         uuid.UUID  `json:"id"`
	TripID     uuid.UUID  `json:"trip_id"`
	Date       time.Time  `json:"date"`
	DayNumber  int        `json:"day_number"`
	Location   string     `json:"location"`
	Coordinate Coordinate `json:"coordinate"`
	Notes      string     `json:"notes"`
}

func (d Day) Ref() Ref            { return Ref{Kind: KindDay, ID: d.ID} }
func (d Day) Parent() (Ref, bool) { return Ref{Kind: KindTrip, ID: d.TripID}, true }
