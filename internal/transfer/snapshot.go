// Package transfer reads and writes the versioned .tripwit snapshot: one
// trip and its whole subtree as a standalone JSON document, used for backup,
// restore and peer-to-peer sharing outside live sync.
//
// Fields added after version 1 (stop links, todos and booking fields) are
// optional on decode, so older files still load with those fields empty.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkordes/tripwit/internal/domain"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 2

// FileExtension is the conventional suffix of snapshot files.
const FileExtension = ".tripwit"

// ErrUnsupportedVersion is returned by Decode for files newer than
// SchemaVersion.
var ErrUnsupportedVersion = errors.New("unsupported snapshot schema version")

// Snapshot mirrors a trip subtree without record IDs.
type Snapshot struct {
	SchemaVersion  int               `json:"schemaVersion"`
	ExportedAt     time.Time         `json:"exportedAt"`
	Name           string            `json:"name"`
	Destination    string            `json:"destination"`
	StartDate      time.Time         `json:"startDate"`
	EndDate        time.Time         `json:"endDate"`
	HasCustomDates bool              `json:"hasCustomDates"`
	Status         domain.TripStatus `json:"status"`
	Notes          string            `json:"notes"`
	BudgetAmount   float64           `json:"budgetAmount"`
	BudgetCurrency string            `json:"budgetCurrency"`
	Days           []Day             `json:"days"`
	Bookings       []Booking         `json:"bookings"`
	Lists          []List            `json:"lists"`
	Expenses       []Expense         `json:"expenses"`
}

// Day is one calendar day of the trip. DayNumber and Date are advisory on
// import; the trip range decides the final numbering.
type Day struct {
	DayNumber int       `json:"dayNumber"`
	Date      time.Time `json:"date"`
	Location  string    `json:"location"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Notes     string    `json:"notes"`
	Stops     []Stop    `json:"stops"`
}

// Stop is a place visited on a day, with its comments, links and todos.
type Stop struct {
	Name          string          `json:"name"`
	Latitude      float64         `json:"latitude"`
	Longitude     float64         `json:"longitude"`
	Category      domain.Category `json:"category"`
	ArrivalTime   *time.Time      `json:"arrivalTime,omitempty"`
	DepartureTime *time.Time      `json:"departureTime,omitempty"`
	Notes         string          `json:"notes"`
	SortOrder     int             `json:"sortOrder"`
	Visited       bool            `json:"isVisited"`
	VisitedAt     *time.Time      `json:"visitedAt,omitempty"`
	Rating        int             `json:"rating"`
	Address       string          `json:"address"`
	Phone         string          `json:"phone"`
	Website       string          `json:"website"`
	Comments      []Comment       `json:"comments"`

	// Added in version 2.
	Links            []Link     `json:"links,omitempty"`
	Todos            []Todo     `json:"todos,omitempty"`
	ConfirmationCode string     `json:"confirmationCode,omitempty"`
	CheckOutDate     *time.Time `json:"checkOutDate,omitempty"`
	Airline          string     `json:"airline,omitempty"`
	FlightNumber     string     `json:"flightNumber,omitempty"`
	DepartureAirport string     `json:"departureAirport,omitempty"`
	ArrivalAirport   string     `json:"arrivalAirport,omitempty"`
}

// Comment is a dated note on a stop.
type Comment struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Link is a titled URL attached to a stop.
type Link struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	SortOrder int    `json:"sortOrder"`
}

// Todo is a checkable task attached to a stop.
type Todo struct {
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
	SortOrder   int    `json:"sortOrder"`
}

// Booking is a reservation held by the trip. Only the details matching
// Type are set.
type Booking struct {
	Type             domain.BookingType       `json:"type"`
	Title            string                   `json:"title"`
	ConfirmationCode string                   `json:"confirmationCode"`
	Notes            string                   `json:"notes"`
	SortOrder        int                      `json:"sortOrder"`
	Flight           *domain.FlightDetails    `json:"flight,omitempty"`
	Hotel            *domain.HotelDetails     `json:"hotel,omitempty"`
	CarRental        *domain.CarRentalDetails `json:"carRental,omitempty"`
}

// List is a named checklist of the trip.
type List struct {
	Name      string     `json:"name"`
	SortOrder int        `json:"sortOrder"`
	Items     []ListItem `json:"items"`
}

// ListItem is one entry of a List.
type ListItem struct {
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
	SortOrder int    `json:"sortOrder"`
}

// Expense is money spent on the trip, in Currency.
type Expense struct {
	Title        string    `json:"title"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Category     string    `json:"category"`
	DateIncurred time.Time `json:"dateIncurred"`
	Notes        string    `json:"notes"`
	SortOrder    int       `json:"sortOrder"`
}

// Encode writes s as indented JSON stamped with the current SchemaVersion.
func Encode(w io.Writer, s Snapshot) error {
	s.SchemaVersion = SchemaVersion
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("transfer.Encode: %w", err)
	}
	return nil
}

// Decode reads a snapshot of any supported version. A missing version is
// read as version 1.
func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("transfer.Decode: %w", err)
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = 1
	}
	if s.SchemaVersion > SchemaVersion {
		return Snapshot{}, fmt.Errorf("transfer.Decode: version %d: %w", s.SchemaVersion, ErrUnsupportedVersion)
	}
	if !s.Status.Valid() {
		s.Status = domain.TripStatusPlanning
	}
	return s, nil
}
