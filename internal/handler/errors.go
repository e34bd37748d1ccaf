package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkordes/tripwit/internal/cloudsync"
	"github.com/pkordes/tripwit/internal/domain"
)

// Error codes carried in ErrorDetail.Code.
const (
	codeValidation  = "validation_error"
	codeNotFound    = "not_found"
	codeForbidden   = "forbidden"
	codeConflict    = "conflict"
	codeUnavailable = "unavailable"
	codeInternal    = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure. Code is stable; Message is for humans.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeServiceError maps a service-layer error onto a status code.
// subject names what was being looked up, e.g. "trip", for 404 messages.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, subject string) {
	var ve domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, codeValidation, ve.Message)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, codeValidation, unwrapMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, subject+" not found")
	case errors.Is(err, cloudsync.ErrNotOwner):
		writeError(w, http.StatusForbidden, codeForbidden, cloudsync.ErrNotOwner.Error())
	case errors.Is(err, domain.ErrReadOnly):
		writeError(w, http.StatusForbidden, codeForbidden, subject+" is read-only for this user")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, unwrapMessage(err, domain.ErrConflict))
	default:
		slog.Default().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// decodeBody decodes a JSON request body into v. It writes a 422 and
// returns false when the body is missing or malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "request body is required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large")
			return false
		}
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// unwrapMessage extracts the human-readable part from a wrapped error,
// dropping a trailing sentinel and the "pkg.Type.Method: " prefixes.
// e.g. "repo.ShareStore.AcceptInvitation: owner cannot accept own invitation: conflict"
// → "owner cannot accept own invitation"
func unwrapMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
