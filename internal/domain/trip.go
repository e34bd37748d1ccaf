// Package domain contains the core data types for the tripwit backend.
// It has no dependencies on storage, transport or sync, and is imported by
// every other internal package.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripStatusPlanning  TripStatus = "planning"
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusPlanning, TripStatusActive, TripStatusCompleted:
		return true
	}
	return false
}

// DefaultCurrency is the budget currency of a new trip.
const DefaultCurrency = "USD"

// Trip is the root planning unit. It owns Days, Bookings, Expenses and Lists.
//
// When HasCustomDates is false the trip has no fixed dates and a single
// "planning" day stands in; StartDate and EndDate then both hold the
// creation date.
type Trip struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Destination    string     `json:"destination"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	HasCustomDates bool       `json:"has_custom_dates"`
	Status         TripStatus `json:"status"`
	Notes          string     `json:"notes"`
	BudgetAmount   float64    `json:"budget_amount"`
	BudgetCurrency string     `json:"budget_currency"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t Trip) Ref() Ref            { return Ref{Kind: KindTrip, ID: t.ID} }
func (t Trip) Parent() (Ref, bool) { return Ref{}, false }

// DayCount is the number of days the trip covers: the inclusive date span
// for dated trips, one planning day otherwise.
func (t Trip) DayCount() int {
	if !t.HasCustomDates {
		return 1
	}
	return DaysBetween(t.StartDate, t.EndDate)
}
