package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/service"
)

// StopRequest is the body of POST /days/{id}/stops and PUT /stops/{id}.
type StopRequest struct {
	Name          string            `json:"name"`
	Coordinate    domain.Coordinate `json:"coordinate"`
	Category      domain.Category   `json:"category,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	ArrivalTime   *time.Time        `json:"arrival_time,omitempty"`
	DepartureTime *time.Time        `json:"departure_time,omitempty"`
	Address       string            `json:"address,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	Website       string            `json:"website,omitempty"`
}

// MoveRequest is the body of POST /stops/{id}/move.
type MoveRequest struct {
	DayID uuid.UUID `json:"day_id"`
}

// VisitedRequest is the body of POST /stops/{id}/visited.
type VisitedRequest struct {
	Visited bool `json:"visited"`
	Rating  int  `json:"rating,omitempty"`
}

// Stop is the JSON representation of a stop.
type Stop struct {
	ID            uuid.UUID          `json:"id"`
	DayID         uuid.UUID          `json:"day_id"`
	Name          string             `json:"name"`
	Coordinate    *domain.Coordinate `json:"coordinate,omitempty"`
	Category      domain.Category    `json:"category"`
	ArrivalTime   *time.Time         `json:"arrival_time,omitempty"`
	DepartureTime *time.Time         `json:"departure_time,omitempty"`
	Notes         *string            `json:"notes,omitempty"`
	SortOrder     int                `json:"sort_order"`
	Visited       bool               `json:"visited"`
	VisitedAt     *time.Time         `json:"visited_at,omitempty"`
	Rating        int                `json:"rating,omitempty"`
	Address       *string            `json:"address,omitempty"`
	Phone         *string            `json:"phone,omitempty"`
	Website       *string            `json:"website,omitempty"`
}

// CreateStop handles POST /days/{id}/stops.
func (s *Server) CreateStop(w http.ResponseWriter, r *http.Request) {
	dayID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body StopRequest
	if !decodeBody(w, r, &body) {
		return
	}

	created, err := s.stops.AddStop(r.Context(), dayID, stopInput(body))
	if err != nil {
		writeServiceError(w, r, err, "day")
		return
	}
	writeJSON(w, http.StatusCreated, stopToResponse(created))
}

// UpdateStop handles PUT /stops/{id}.
func (s *Server) UpdateStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body StopRequest
	if !decodeBody(w, r, &body) {
		return
	}

	updated, err := s.stops.UpdateStop(r.Context(), id, stopInput(body))
	if err != nil {
		writeServiceError(w, r, err, "stop")
		return
	}
	writeJSON(w, http.StatusOK, stopToResponse(updated))
}

// MoveStop handles POST /stops/{id}/move. The stop is appended to the end
// of the target day, which may belong to another trip.
func (s *Server) MoveStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body MoveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.DayID == uuid.Nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "day_id is required")
		return
	}

	moved, err := s.stops.MoveStop(r.Context(), id, body.DayID)
	if err != nil {
		writeServiceError(w, r, err, "stop or day")
		return
	}
	writeJSON(w, http.StatusOK, stopToResponse(moved))
}

// MarkVisited handles POST /stops/{id}/visited.
func (s *Server) MarkVisited(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body VisitedRequest
	if !decodeBody(w, r, &body) {
		return
	}
	stop, err := s.stops.MarkVisited(r.Context(), id, body.Visited, body.Rating)
	if err != nil {
		writeServiceError(w, r, err, "stop")
		return
	}
	writeJSON(w, http.StatusOK, stopToResponse(stop))
}

// DeleteStop handles DELETE /stops/{id}.
func (s *Server) DeleteStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.stops.DeleteStop(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "stop")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func stopInput(body StopRequest) service.StopInput {
	return service.StopInput{
		Name:          body.Name,
		Coordinate:    body.Coordinate,
		Category:      body.Category,
		Notes:         body.Notes,
		ArrivalTime:   body.ArrivalTime,
		DepartureTime: body.DepartureTime,
		Address:       body.Address,
		Phone:         body.Phone,
		Website:       body.Website,
	}
}

// stopToResponse converts a domain.Stop to its JSON representation.
// Empty strings become nil pointers for optional JSON fields so they are
// omitted from the response rather than sent as empty strings, and the 0,0
// coordinate sentinel is omitted the same way.
func stopToResponse(s domain.Stop) Stop {
	resp := Stop{
		ID:            s.ID,
		DayID:         s.DayID,
		Name:          s.Name,
		Category:      s.Category,
		ArrivalTime:   s.ArrivalTime,
		DepartureTime: s.DepartureTime,
		Notes:         nilIfEmpty(s.Notes),
		SortOrder:     s.SortOrder,
		Visited:       s.Visited,
		VisitedAt:     s.VisitedAt,
		Address:       nilIfEmpty(s.Address),
		Phone:         nilIfEmpty(s.Phone),
		Website:       nilIfEmpty(s.Website),
	}
	if s.Coordinate.IsSet() {
		c := s.Coordinate
		resp.Coordinate = &c
	}
	if s.Visited {
		resp.Rating = s.Rating
	}
	return resp
}

// nilIfEmpty converts an empty string to a nil pointer.
// Used when mapping domain strings to optional API response fields.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
