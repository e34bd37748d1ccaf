// Package bookingmail extracts flight, hotel and car-rental bookings from
// confirmation email text. Parsing never fails; see ParseOrPlaceholder for
// the unstructured fallback.
package bookingmail

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkordes/tripwit/internal/domain"
)

// Detail keys emitted by the extractors.
const (
	KeyAirline          = "airline"
	KeyFlightNumber     = "flight_number"
	KeyDepartureAirport = "departure_airport"
	KeyArrivalAirport   = "arrival_airport"
	KeyHotelName        = "hotel_name"
	KeyAddress          = "address"
	KeyCheckIn          = "check_in"
	KeyCheckOut         = "check_out"
	KeyCompany          = "company"
	KeyPickup           = "pickup"
	KeyReturn           = "return"
)

// Detail is one labeled value pulled out of the email.
type Detail struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParsedBooking is a booking draft. Details keep extraction order.
type ParsedBooking struct {
	Type             domain.BookingType `json:"type"`
	Title            string             `json:"title"`
	ConfirmationCode string             `json:"confirmation_code"`
	Notes            string             `json:"notes"`
	Details          []Detail           `json:"details"`
}

// Value returns the first detail with key, or "".
func (p ParsedBooking) Value(key string) string {
	for _, d := range p.Details {
		if d.Key == key {
			return d.Value
		}
	}
	return ""
}

const (
	// MinPlaceholderLength is the shortest input that still yields a
	// placeholder booking when nothing structured is found.
	MinPlaceholderLength = 20
	placeholderNotesMax  = 500
)

var (
	flightKeywords = []string{"flight", "boarding pass", "itinerary", "airline", "e-ticket", "departure gate", "seat assignment"}
	hotelKeywords  = []string{"hotel", "check-in", "check in", "reservation", "room", "guests", "nights"}
	carKeywords    = []string{"rental", "pickup", "pick-up", "vehicle", "car hire"}
)

var (
	confirmationPattern = regexp.MustCompile(`(?i:confirmation|booking|reservation|reference)(?i:\s+(?:code|number|no\.?|#))?\s*(?i:is)?\s*[:#]?\s*([A-Z0-9]{5,12})\b`)
	locatorPattern      = regexp.MustCompile(`(?i:pnr|record locator)\s*[:#]?\s*([A-Z0-9]{5,8})\b`)

	airlinePattern      = regexp.MustCompile(`(?i)airline\s*[:\-]\s*([^\n]+)`)
	flightNumberPattern = regexp.MustCompile(`\b([A-Z]{2}\s?\d{1,4})\b`)
	routePattern        = regexp.MustCompile(`\b([A-Z]{3})\s*(?:→|->|–|-|to)\s*([A-Z]{3})\b`)
	fromPattern         = regexp.MustCompile(`(?i)\b(?:from|depart(?:s|ure)?(?: airport)?)\s*:\s*([^\n]+)`)
	toPattern           = regexp.MustCompile(`(?i)\b(?:to|arrive(?:s)?|arrival(?: airport)?)\s*:\s*([^\n]+)`)

	hotelNamePattern   = regexp.MustCompile(`(?i)(?:hotel name|property|hotel)\s*:\s*([^\n]+)`)
	hotelInlinePattern = regexp.MustCompile(`\b((?:Hotel|Inn|Resort)\s+[A-Z][^\n,.!]*)`)
	addressPattern     = regexp.MustCompile(`(?i)address\s*:\s*([^\n]+)`)
	checkInPattern     = regexp.MustCompile(`(?i)check[\s-]?in(?:\s+date)?\s*:\s*([^\n]+)`)
	checkOutPattern    = regexp.MustCompile(`(?i)check[\s-]?out(?:\s+date)?\s*:\s*([^\n]+)`)

	companyPattern = regexp.MustCompile(`(?i)(?:rental company|company|provider)\s*:\s*([^\n]+)`)
	pickupPattern  = regexp.MustCompile(`(?i)pick[\s-]?up(?:\s+location)?\s*:\s*([^\n]+)`)
	returnPattern  = regexp.MustCompile(`(?i)(?:return|drop[\s-]?off)(?:\s+location)?\s*:\s*([^\n]+)`)
)

var rentalCompanyPattern = regexp.MustCompile(`\b(Hertz|Avis|Enterprise|Sixt|Budget|Europcar|Alamo|National|Thrifty|Dollar)\b`)

// Parse classifies text and returns one booking per matched type, in the
// order flight, hotel, car rental. All returned bookings share the
// confirmation code found in text.
func Parse(text string) []ParsedBooking {
	lower := strings.ToLower(text)
	code := ConfirmationCode(text)

	var out []ParsedBooking
	if containsAny(lower, flightKeywords) {
		out = append(out, parseFlight(text, code))
	}
	if containsAny(lower, hotelKeywords) {
		out = append(out, parseHotel(text, code))
	}
	if containsAny(lower, carKeywords) {
		out = append(out, parseCar(text, code))
	}
	return out
}

// ParseOrPlaceholder is Parse with the unstructured fallback: when nothing
// matched and text has at least MinPlaceholderLength characters, a single
// "other" booking carries the first 500 characters as notes.
func ParseOrPlaceholder(text string) []ParsedBooking {
	if out := Parse(text); len(out) > 0 {
		return out
	}
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < MinPlaceholderLength {
		return nil
	}
	return []ParsedBooking{{
		Type:             domain.BookingOther,
		Title:            "Booking",
		ConfirmationCode: ConfirmationCode(text),
		Notes:            truncate(trimmed, placeholderNotesMax),
	}}
}

// ConfirmationCode returns the first confirmation/booking/reservation/
// reference code, falling back to a PNR or record locator.
func ConfirmationCode(text string) string {
	if m := confirmationPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := locatorPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func parseFlight(text, code string) ParsedBooking {
	b := ParsedBooking{Type: domain.BookingFlight, ConfirmationCode: code}
	b.add(KeyAirline, firstGroup(airlinePattern, text))
	if m := flightNumberPattern.FindStringSubmatch(text); m != nil {
		b.add(KeyFlightNumber, strings.ReplaceAll(m[1], " ", ""))
	}
	if m := routePattern.FindStringSubmatch(text); m != nil {
		b.add(KeyDepartureAirport, m[1])
		b.add(KeyArrivalAirport, m[2])
	} else {
		b.add(KeyDepartureAirport, firstGroup(fromPattern, text))
		b.add(KeyArrivalAirport, firstGroup(toPattern, text))
	}

	switch {
	case b.Value(KeyFlightNumber) != "":
		b.Title = "Flight " + b.Value(KeyFlightNumber)
	case b.Value(KeyAirline) != "":
		b.Title = b.Value(KeyAirline) + " flight"
	default:
		b.Title = "Flight"
	}
	return b
}

func parseHotel(text, code string) ParsedBooking {
	b := ParsedBooking{Type: domain.BookingHotel, ConfirmationCode: code}
	name := firstGroup(hotelNamePattern, text)
	if name == "" {
		name = firstGroup(hotelInlinePattern, text)
	}
	b.add(KeyHotelName, name)
	b.add(KeyAddress, firstGroup(addressPattern, text))
	b.add(KeyCheckIn, firstGroup(checkInPattern, text))
	b.add(KeyCheckOut, firstGroup(checkOutPattern, text))

	b.Title = "Hotel"
	if name != "" {
		b.Title = name
	}
	return b
}

func parseCar(text, code string) ParsedBooking {
	b := ParsedBooking{Type: domain.BookingCarRental, ConfirmationCode: code}
	company := firstGroup(companyPattern, text)
	if company == "" {
		company = firstGroup(rentalCompanyPattern, text)
	}
	b.add(KeyCompany, company)
	b.add(KeyPickup, firstGroup(pickupPattern, text))
	b.add(KeyReturn, firstGroup(returnPattern, text))

	b.Title = "Car Rental"
	if company != "" {
		b.Title = company + " car rental"
	}
	return b
}

func (p *ParsedBooking) add(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	p.Details = append(p.Details, Detail{Key: key, Value: value})
}

func firstGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
