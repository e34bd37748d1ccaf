package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/service"
)

// ExpenseRequest is the body of POST /trips/{id}/expenses.
// Omitted date_incurred means today; omitted currency the trip's budget currency.
type ExpenseRequest struct {
	Title        string              `json:"title"`
	Amount       float64             `json:"amount"`
	Currency     string              `json:"currency,omitempty"`
	Category     string              `json:"category,omitempty"`
	DateIncurred *openapi_types.Date `json:"date_incurred,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

// Expense is the JSON representation of an expense.
type Expense struct {
	ID           uuid.UUID          `json:"id"`
	TripID       uuid.UUID          `json:"trip_id"`
	Title        string             `json:"title"`
	Amount       float64            `json:"amount"`
	Currency     string             `json:"currency"`
	Category     string             `json:"category,omitempty"`
	DateIncurred openapi_types.Date `json:"date_incurred"`
	Notes        string             `json:"notes,omitempty"`
	SortOrder    int                `json:"sort_order"`
}

// ItineraryRequest is the body of POST /parse/itinerary and
// POST /trips/{id}/itinerary. TotalDays is ignored for the latter, which
// uses the trip's own day count.
type ItineraryRequest struct {
	Text      string `json:"text"`
	TotalDays int    `json:"total_days,omitempty"`
}

// ItineraryResponse carries parsed day drafts. Empty is true when nothing
// usable was found and the text should be reformatted.
type ItineraryResponse struct {
	Days  []itinerary.ParsedDay `json:"days"`
	Empty bool                  `json:"empty"`
	Added int                   `json:"added,omitempty"`
}

// BookingRequest is the body of POST /parse/booking and
// POST /trips/{id}/bookings/parse. When HTML is set its text content is
// appended to Text before parsing.
type BookingRequest struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

// ParsedBookings is the body of POST /parse/booking.
type ParsedBookings struct {
	Bookings []bookingmail.ParsedBooking `json:"bookings"`
}

// Bookings is the body of POST /trips/{id}/bookings/parse.
type Bookings struct {
	Bookings []domain.Booking `json:"bookings"`
}

// Located is the body of POST /trips/{id}/geocode.
type Located struct {
	Located int `json:"located"`
}

// CreateExpense handles POST /trips/{id}/expenses.
func (s *Server) CreateExpense(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body ExpenseRequest
	if !decodeBody(w, r, &body) {
		return
	}
	in := service.ExpenseInput{
		Title:    body.Title,
		Amount:   body.Amount,
		Currency: body.Currency,
		Category: body.Category,
		Notes:    body.Notes,
	}
	if body.DateIncurred != nil {
		in.DateIncurred = body.DateIncurred.Time
	}

	e, err := s.plans.AddExpense(r.Context(), tripID, in)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, Expense{
		ID:           e.ID,
		TripID:       e.TripID,
		Title:        e.Title,
		Amount:       e.Amount,
		Currency:     e.Currency,
		Category:     e.Category,
		DateIncurred: openapi_types.Date{Time: e.DateIncurred},
		Notes:        e.Notes,
		SortOrder:    e.SortOrder,
	})
}

// ParseItinerary handles POST /parse/itinerary. It never fails on content:
// unusable text yields an empty result.
func (s *Server) ParseItinerary(w http.ResponseWriter, r *http.Request) {
	var body ItineraryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	days := s.itinerary.Parse(r.Context(), body.Text, max(body.TotalDays, 1))
	writeJSON(w, http.StatusOK, itineraryResponse(days, 0))
}

// ImportItinerary handles POST /trips/{id}/itinerary: the text is parsed
// against the trip's day count and the stops are appended to its days.
func (s *Server) ImportItinerary(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body ItineraryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	trip, err := s.trips.Trip(tripID)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}

	days := s.itinerary.Parse(r.Context(), body.Text, trip.DayCount())
	if itinerary.Empty(days) {
		writeJSON(w, http.StatusOK, itineraryResponse(days, 0))
		return
	}
	added, err := s.plans.ImportParsedDays(r.Context(), tripID, days)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, itineraryResponse(days, added))
}

// ParseBooking handles POST /parse/booking.
func (s *Server) ParseBooking(w http.ResponseWriter, r *http.Request) {
	text, ok := bookingText(w, r)
	if !ok {
		return
	}
	parsed := bookingmail.ParseOrPlaceholder(text)
	if parsed == nil {
		parsed = []bookingmail.ParsedBooking{}
	}
	writeJSON(w, http.StatusOK, ParsedBookings{Bookings: parsed})
}

// ImportBookings handles POST /trips/{id}/bookings/parse: the parsed drafts
// are added to the trip as bookings.
func (s *Server) ImportBookings(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathID(w, r)
	if !ok {
		return
	}
	text, ok := bookingText(w, r)
	if !ok {
		return
	}
	parsed := bookingmail.ParseOrPlaceholder(text)
	if len(parsed) == 0 {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "no booking found in the text")
		return
	}

	added, err := s.plans.AddParsedBookings(r.Context(), tripID, parsed)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, Bookings{Bookings: added})
}

// GeocodeStops handles POST /trips/{id}/geocode: every stop without a
// coordinate is looked up by name and address.
func (s *Server) GeocodeStops(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathID(w, r)
	if !ok {
		return
	}
	if s.locator == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "geocoding is not configured")
		return
	}
	n, err := s.plans.LocateStops(r.Context(), tripID, s.locator)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, Located{Located: n})
}

// bookingText decodes a BookingRequest and flattens it to plain text.
func bookingText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body BookingRequest
	if !decodeBody(w, r, &body) {
		return "", false
	}
	parts := []string{body.Text}
	if strings.TrimSpace(body.HTML) != "" {
		t, err := bookingmail.TextFromHTML(body.HTML)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "html could not be read")
			return "", false
		}
		parts = append(parts, t)
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "text or html is required")
		return "", false
	}
	return text, true
}

func itineraryResponse(days []itinerary.ParsedDay, added int) ItineraryResponse {
	if days == nil {
		days = []itinerary.ParsedDay{}
	}
	return ItineraryResponse{Days: days, Empty: itinerary.Empty(days), Added: added}
}
