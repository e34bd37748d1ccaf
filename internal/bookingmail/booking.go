package bookingmail

import (
	"strings"

	"github.com/pkordes/tripwit/internal/domain"
)

// Booking maps the draft onto a domain booking without an ID or trip.
// Details that have no typed field (check-in text, pickup location) are kept
// as "key: value" lines in Notes.
func (p ParsedBooking) Booking() domain.Booking {
	b := domain.Booking{
		Type:             p.Type,
		Title:            p.Title,
		ConfirmationCode: p.ConfirmationCode,
	}
	var extra []string
	switch p.Type {
	case domain.BookingFlight:
		b.Flight = &domain.FlightDetails{
			Airline:          p.Value(KeyAirline),
			FlightNumber:     p.Value(KeyFlightNumber),
			DepartureAirport: p.Value(KeyDepartureAirport),
			ArrivalAirport:   p.Value(KeyArrivalAirport),
		}
	case domain.BookingHotel:
		b.Hotel = &domain.HotelDetails{
			Name:    p.Value(KeyHotelName),
			Address: p.Value(KeyAddress),
		}
		extra = p.lines(KeyCheckIn, KeyCheckOut)
	case domain.BookingCarRental:
		b.CarRental = &domain.CarRentalDetails{Company: p.Value(KeyCompany)}
		extra = p.lines(KeyPickup, KeyReturn)
	}
	if p.Notes != "" {
		extra = append([]string{p.Notes}, extra...)
	}
	b.Notes = strings.Join(extra, "\n")
	return b
}

func (p ParsedBooking) lines(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if v := p.Value(k); v != "" {
			out = append(out, k+": "+v)
		}
	}
	return out
}
