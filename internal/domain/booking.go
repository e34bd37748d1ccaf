package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingType selects which of the type-specific detail blocks of a Booking
// is meaningful.
type BookingType string

const (
	BookingFlight    BookingType = "flight"
	BookingHotel     BookingType = "hotel"
	BookingCarRental BookingType = "car_rental"
	BookingOther     BookingType = "other"
)

// Valid reports whether b is a known booking type.
func (b BookingType) Valid() bool {
	switch b {
	case BookingFlight, BookingHotel, BookingCarRental, BookingOther:
		return true
	}
	return false
}

// FlightDetails holds the flight variant of a booking.
type FlightDetails struct {
	Airline          string     `json:"airline"`
	FlightNumber     string     `json:"flight_number"`
	DepartureAirport string     `json:"departure_airport"`
	ArrivalAirport   string     `json:"arrival_airport"`
	DepartureTime    *time.Time `json:"departure_time,omitempty"`
	ArrivalTime      *time.Time `json:"arrival_time,omitempty"`
}

// HotelDetails holds the hotel variant of a booking.
type HotelDetails struct {
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	CheckIn  *time.Time `json:"check_in,omitempty"`
	CheckOut *time.Time `json:"check_out,omitempty"`
}

// CarRentalDetails holds the car-rental variant of a booking.
type CarRentalDetails struct {
	Company    string     `json:"company"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	ReturnTime *time.Time `json:"return_time,omitempty"`
}

// Booking is a reservation attached directly to a trip. Exactly the detail
// block matching Type is set; the others are nil.
type Booking struct {
	ID               uuid.UUID         `json:"id"`
	TripID           uuid.UUID         `json:"trip_id"`
	Type             BookingType       `json:"type"`
	Title            string            `json:"title"`
	ConfirmationCode string            `json:"confirmation_code"`
	Notes            string            `json:"notes"`
	SortOrder        int               `json:"sort_order"`
	Flight           *FlightDetails    `json:"flight,omitempty"`
	Hotel            *HotelDetails     `json:"hotel,omitempty"`
	CarRental        *CarRentalDetails `json:"car_rental,omitempty"`
}

func (b Booking) Ref() Ref            { return Ref{Kind: KindBooking, ID: b.ID} }
func (b Booking) Parent() (Ref, bool) { return Ref{Kind: KindTrip, ID: b.TripID}, true }

// Expense is money spent on a trip.
type Expense struct {
	ID           uuid.UUID `json:"id"`
	TripID       uuid.UUID `json:"trip_id"`
	Title        string    `json:"title"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Category     string    `json:"category"`
	DateIncurred time.Time `json:"date_incurred"`
	Notes        string    `json:"notes"`
	SortOrder    int       `json:"sort_order"`
}

func (e Expense) Ref() Ref            { return Ref{Kind: KindExpense, ID: e.ID} }
func (e Expense) Parent() (Ref, bool) { return Ref{Kind: KindTrip, ID: e.TripID}, true }
