package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by graph, repo and service functions when the
// requested record does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, end date before start date).
// Every ValidationError matches it with errors.Is.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrReadOnly is returned when the current user may not write to a record
// that lives in the shared store under a read-only grant.
// Handlers should map this to HTTP 403.
var ErrReadOnly = errors.New("read-only record")

// ErrPersistence wraps a failed durable save. The in-memory graph keeps the
// mutation and the pending changes are retried on the next save.
var ErrPersistence = errors.New("persistence error")

// ErrConflict is returned when a write collides with state another user
// already established, such as accepting an invitation someone else used.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ValidationError is one member of the closed validation taxonomy.
// It is a comparable value, so callers can match a specific failure with
// errors.Is(err, domain.ErrEmptyName) or any failure with
// errors.Is(err, domain.ErrValidation).
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return "validation error: " + e.Message
}

// Is reports whether target is ErrValidation, so every ValidationError is
// also a validation error in the sentinel sense.
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// The validation taxonomy. No other ValidationError values are produced;
// callers add detail by wrapping a member.
var (
	ErrEmptyName              = ValidationError{Code: "empty_name", Message: "name is required"}
	ErrEmptyDestination       = ValidationError{Code: "empty_destination", Message: "destination is required"}
	ErrEndBeforeStart         = ValidationError{Code: "end_before_start", Message: "end date must not be before start date"}
	ErrTripTooLong            = ValidationError{Code: "trip_too_long", Message: fmt.Sprintf("a trip may span at most %d days", MaxTripDays)}
	ErrEmptyStopName          = ValidationError{Code: "empty_stop_name", Message: "stop name is required"}
	ErrDepartureBeforeArrival = ValidationError{Code: "departure_before_arrival", Message: "departure must not be before arrival"}
	ErrNegativeAmount         = ValidationError{Code: "negative_amount", Message: "amount must not be negative"}
	ErrEmptyExpenseTitle      = ValidationError{Code: "empty_expense_title", Message: "expense title is required"}
	ErrEmptyBookingTitle      = ValidationError{Code: "empty_booking_title", Message: "booking title is required"}
	ErrArrivalBeforeDeparture = ValidationError{Code: "arrival_before_departure", Message: "arrival must not be before departure"}
	ErrEmptyText              = ValidationError{Code: "empty_text", Message: "text is required"}
	ErrEmptyURL               = ValidationError{Code: "empty_url", Message: "url is required"}
	ErrInvalidRating          = ValidationError{Code: "invalid_rating", Message: "rating must be between 1 and 5, or 0 for unrated"}
	ErrInvalidOffset          = ValidationError{Code: "invalid_offset", Message: "offset out of range"}
	ErrInvalidPermission      = ValidationError{Code: "invalid_permission", Message: "permission must be read_only or read_write"}
)
