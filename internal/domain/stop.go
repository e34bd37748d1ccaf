package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies a stop.
type Category string

const (
	CategoryAccommodation Category = "accommodation"
	CategoryRestaurant    Category = "restaurant"
	CategoryAttraction    Category = "attraction"
	CategoryTransport     Category = "transport"
	CategoryActivity      Category = "activity"
	CategoryOther         Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAccommodation, CategoryRestaurant, CategoryAttraction,
		CategoryTransport, CategoryActivity, CategoryOther:
		return true
	}
	return false
}

// Stop is a single planned place, activity or transit leg within a Day.
// SortOrder is dense and 0-based within the day.
//
// The booking-style fields are only filled when a stop doubles as a lodging
// or flight record.
type Stop struct {
	ID            uuid.UUID  `json:"id"`
	DayID         uuid.UUID  `json:"day_id"`
	Name          string     `json:"name"`
	Coordinate    Coordinate `json:"coordinate"`
	Category      Category   `json:"category"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	Notes         string     `json:"notes"`
	SortOrder     int        `json:"sort_order"`

	Visited   bool       `json:"visited"`
	VisitedAt *time.Time `json:"visited_at,omitempty"`
	Rating    int        `json:"rating"` // 1-5, 0 when unrated; only meaningful when Visited

	Address string `json:"address"`
	Phone   string `json:"phone"`
	Website string `json:"website"`

	ConfirmationCode string     `json:"confirmation_code"`
	CheckOutDate     *time.Time `json:"check_out_date,omitempty"`
	Airline          string     `json:"airline"`
	FlightNumber     string     `json:"flight_number"`
	DepartureAirport string     `json:"departure_airport"`
	ArrivalAirport   string     `json:"arrival_airport"`
}

func (s Stop) Ref() Ref            { return Ref{Kind: KindStop, ID: s.ID} }
func (s Stop) Parent() (Ref, bool) { return Ref{Kind: KindDay, ID: s.DayID}, true }

// Comment is a timestamped note on a stop.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	StopID    uuid.UUID `json:"stop_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Comment) Ref() Ref            { return Ref{Kind: KindComment, ID: c.ID} }
func (c Comment) Parent() (Ref, bool) { return Ref{Kind: KindStop, ID: c.StopID}, true }

// Link is a titled URL attached to a stop.
type Link struct {
	ID        uuid.UUID `json:"id"`
	StopID    uuid.UUID `json:"stop_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	SortOrder int       `json:"sort_order"`
}

func (l Link) Ref() Ref            { return Ref{Kind: KindLink, ID: l.ID} }
func (l Link) Parent() (Ref, bool) { return Ref{Kind: KindStop, ID: l.StopID}, true }

// Todo is a checklist entry attached to a stop.
type Todo struct {
	ID        uuid.UUID `json:"id"`
	StopID    uuid.UUID `json:"stop_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	SortOrder int       `json:"sort_order"`
}

func (t Todo) Ref() Ref            { return Ref{Kind: KindTodo, ID: t.ID} }
func (t Todo) Parent() (Ref, bool) { return Ref{Kind: KindStop, ID: t.StopID}, true }
