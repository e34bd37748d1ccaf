package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/service"
)

// TripRequest is the body of POST /trips and PUT /trips/{id}.
// Omitting both dates makes an undated trip with a single planning day.
type TripRequest struct {
	Name           string              `json:"name"`
	Destination    string              `json:"destination"`
	StartDate      *openapi_types.Date `json:"start_date,omitempty"`
	EndDate        *openapi_types.Date `json:"end_date,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	Status         domain.TripStatus   `json:"status,omitempty"`
	BudgetAmount   float64             `json:"budget_amount,omitempty"`
	BudgetCurrency string              `json:"budget_currency,omitempty"`
}

// Trip is the JSON representation of a trip.
type Trip struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Destination    string             `json:"destination"`
	StartDate      openapi_types.Date `json:"start_date"`
	EndDate        openapi_types.Date `json:"end_date"`
	HasCustomDates bool               `json:"has_custom_dates"`
	Status         domain.TripStatus  `json:"status"`
	Notes          string             `json:"notes,omitempty"`
	BudgetAmount   float64            `json:"budget_amount"`
	BudgetCurrency string             `json:"budget_currency"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// TripList is the body of GET /trips and GET /trips/conflicts. Only
// GET /trips is paginated.
type TripList struct {
	Data       []Trip      `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page returned in a TripList.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// DatesRequest is the body of PUT /trips/{id}/dates. Sending neither date
// turns the trip back into an undated plan.
type DatesRequest struct {
	StartDate *openapi_types.Date `json:"start_date,omitempty"`
	EndDate   *openapi_types.Date `json:"end_date,omitempty"`
}

// DatesConflictResponse is the 409 body of PUT /trips/{id}/dates when the
// new range would drop days that still hold stops.
type DatesConflictResponse struct {
	Error         ErrorDetail `json:"error"`
	DaysWithStops int         `json:"days_with_stops"`
}

// CloneRequest is the body of POST /trips/{id}/clone.
type CloneRequest struct {
	StartDate openapi_types.Date `json:"start_date"`
}

// Score is the body of GET /trips/{id}/score.
type Score struct {
	TripID uuid.UUID `json:"trip_id"`
	Score  float64   `json:"score"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var body TripRequest
	if !decodeBody(w, r, &body) {
		return
	}
	in, err := requestToTripInput(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
		return
	}

	created, err := s.trips.CreateTrip(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	params := domain.NewPaginationParams(queryInt(r, "page"), queryInt(r, "limit"))
	trips := s.trips.Trips()
	total := len(trips)

	from := min(params.Offset(), total)
	to := min(from+params.Limit, total)
	resp := tripsToResponse(trips[from:to])
	resp.Pagination = &Pagination{Page: params.Page, Limit: params.Limit, Total: total}
	writeJSON(w, http.StatusOK, resp)
}

// queryInt returns the named query parameter as an int, or nil when it is
// absent or not a number.
func queryInt(r *http.Request, name string) *int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &v
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := s.trips.Trip(id)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PUT /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body TripRequest
	if !decodeBody(w, r, &body) {
		return
	}
	in, err := requestToTripInput(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
		return
	}

	updated, err := s.trips.UpdateTrip(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.trips.DeleteTrip(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateTripDates handles PUT /trips/{id}/dates.
// When the new range would drop days that still have stops, the request is
// refused with 409 and the count unless ?confirm=true is given.
func (s *Server) UpdateTripDates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body DatesRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if (body.StartDate == nil) != (body.EndDate == nil) {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "start_date and end_date must be sent together")
		return
	}

	var start, end *time.Time
	if body.StartDate != nil {
		start, end = &body.StartDate.Time, &body.EndDate.Time
		if r.URL.Query().Get("confirm") != "true" {
			n, err := s.trips.DaysWithStopsOutsideRange(id, *start, *end)
			if err != nil {
				writeServiceError(w, r, err, "trip")
				return
			}
			if n > 0 {
				writeJSON(w, http.StatusConflict, DatesConflictResponse{
					Error: ErrorDetail{
						Code:    codeConflict,
						Message: fmt.Sprintf("%d day(s) with stops fall outside the new range; resend with confirm=true to remove them", n),
					},
					DaysWithStops: n,
				})
				return
			}
		}
	}

	updated, err := s.trips.UpdateTripDates(r.Context(), id, start, end)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// CloneTrip handles POST /trips/{id}/clone.
func (s *Server) CloneTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body CloneRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.StartDate.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "start_date is required")
		return
	}

	clone, err := s.trips.CloneTrip(r.Context(), id, body.StartDate.Time)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(clone))
}

// GetScore handles GET /trips/{id}/score.
func (s *Server) GetScore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	score, err := s.trips.CompletionScore(id)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, Score{TripID: id, Score: score})
}

// FindConflicts handles GET /trips/conflicts?start=&end=&exclude=.
// It lists dated trips overlapping [start, end], minus the excluded trip.
func (s *Server) FindConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.DateOnly, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse(time.DateOnly, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "end must be a YYYY-MM-DD date")
		return
	}
	var exclude uuid.UUID
	if v := q.Get("exclude"); v != "" {
		if exclude, err = uuid.Parse(v); err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "exclude must be a UUID")
			return
		}
	}
	writeJSON(w, http.StatusOK, tripsToResponse(s.trips.FindConflictingTrips(start, end, exclude)))
}

// GetExpenseTotals handles GET /trips/{id}/expenses, returning the sum of
// the trip's expenses per currency.
func (s *Server) GetExpenseTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	totals, err := s.trips.TotalExpenses(id)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trip_id": id, "totals": totals})
}

// --- mapping helpers --------------------------------------------------------

// requestToTripInput converts a TripRequest body into a service.TripInput.
// Returns an error if only one of the two dates is present.
func requestToTripInput(body TripRequest) (service.TripInput, error) {
	if (body.StartDate == nil) != (body.EndDate == nil) {
		return service.TripInput{}, errors.New("start_date and end_date must be sent together")
	}
	in := service.TripInput{
		Name:           body.Name,
		Destination:    body.Destination,
		Notes:          body.Notes,
		Status:         body.Status,
		BudgetAmount:   body.BudgetAmount,
		BudgetCurrency: body.BudgetCurrency,
	}
	if body.StartDate != nil {
		start, end := body.StartDate.Time, body.EndDate.Time
		in.StartDate, in.EndDate = &start, &end
	}
	return in, nil
}

// tripToResponse converts a domain.Trip into its JSON representation.
func tripToResponse(t domain.Trip) Trip {
	return Trip{
		ID:             t.ID,
		Name:           t.Name,
		Destination:    t.Destination,
		StartDate:      openapi_types.Date{Time: t.StartDate},
		EndDate:        openapi_types.Date{Time: t.EndDate},
		HasCustomDates: t.HasCustomDates,
		Status:         t.Status,
		Notes:          t.Notes,
		BudgetAmount:   t.BudgetAmount,
		BudgetCurrency: t.BudgetCurrency,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func tripsToResponse(trips []domain.Trip) TripList {
	data := make([]Trip, len(trips))
	for i, t := range trips {
		data[i] = tripToResponse(t)
	}
	return TripList{Data: data}
}
