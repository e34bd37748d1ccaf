package domain

import (
	"strings"
	"time"
)

// The validators below are pure: they never mutate their input and can be
// called for pre-flight checks before any mutation is attempted.

// ValidateTrip checks the user-editable trip fields. Date order is only
// enforced when the trip has custom dates.
func ValidateTrip(name, destination string, start, end time.Time, hasCustomDates bool) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(destination) == "" {
		return ErrEmptyDestination
	}
	if hasCustomDates && DateOnly(end).Before(DateOnly(start)) {
		return ErrEndBeforeStart
	}
	if hasCustomDates && DaysBetween(start, end) > MaxTripDays {
		return ErrTripTooLong
	}
	return nil
}

// ValidateStop checks a stop name and its optional arrival/departure times.
func ValidateStop(name string, arrival, departure *time.Time) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyStopName
	}
	if arrival != nil && departure != nil && departure.Before(*arrival) {
		return ErrDepartureBeforeArrival
	}
	return nil
}

// ValidateExpense checks an expense title and amount.
func ValidateExpense(title string, amount float64) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyExpenseTitle
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// ValidateBooking checks a booking title and, for flights, that arrival is
// not before departure.
func ValidateBooking(b Booking) error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyBookingTitle
	}
	if f := b.Flight; f != nil && f.DepartureTime != nil && f.ArrivalTime != nil &&
		f.ArrivalTime.Before(*f.DepartureTime) {
		return ErrArrivalBeforeDeparture
	}
	return nil
}
