package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
)

// ShareRequest is the body of POST /trips/{id}/share.
type ShareRequest struct {
	Permission domain.Permission `json:"permission"`
}

// ShareStatus reports where a trip is in the sharing lifecycle on this
// device.
type ShareStatus struct {
	TripID uuid.UUID         `json:"trip_id"`
	State  domain.ShareState `json:"state"`
}

// ShareTrip handles POST /trips/{id}/share. The trip moves to the shared
// store on first use and the response carries the invitation to hand over.
func (s *Server) ShareTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.sharingEnabled(w) {
		return
	}
	var body ShareRequest
	if !decodeBody(w, r, &body) {
		return
	}

	inv, err := s.sharing.ShareTrip(r.Context(), id, body.Permission)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// GetShareState handles GET /trips/{id}/share. A trip accepted but not yet
// replicated is re-checked, so polling this endpoint completes the import.
func (s *Server) GetShareState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.sharingEnabled(w) {
		return
	}
	// A failed import still reports awaiting-import; records arrive later.
	state, _ := s.sharing.PollImport(r.Context(), id)
	writeJSON(w, http.StatusOK, ShareStatus{TripID: id, State: state})
}

// AcceptShare handles POST /shares/accept. The body is the invitation
// received from the owner. A second acceptance while one is running gets 409.
func (s *Server) AcceptShare(w http.ResponseWriter, r *http.Request) {
	if !s.sharingEnabled(w) {
		return
	}
	var inv domain.Invitation
	if !decodeBody(w, r, &inv) {
		return
	}
	if inv.Token == uuid.Nil || inv.TripID == uuid.Nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "token and trip_id are required")
		return
	}

	s.sharing.ReceiveInvitation(inv)
	accepted, err := s.sharing.AcceptShare(r.Context(), inv)
	if err != nil {
		writeServiceError(w, r, err, "invitation")
		return
	}
	if !accepted {
		writeError(w, http.StatusConflict, codeConflict, "another share acceptance is in progress")
		return
	}
	state, _ := s.sharing.PollImport(r.Context(), inv.TripID)
	writeJSON(w, http.StatusOK, ShareStatus{TripID: inv.TripID, State: state})
}

func (s *Server) sharingEnabled(w http.ResponseWriter) bool {
	if s.sharing == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "sharing is not configured")
		return false
	}
	return true
}
