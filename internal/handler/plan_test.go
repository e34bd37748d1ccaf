package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/handler"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/service"
)

const flightEmail = `Your booking is confirmed.
Confirmation code: QX7YTR
Flight TP 1234 from LIS to OPO
Airline: TAP Air Portugal`

// ---- POST /trips/{id}/expenses ---------------------------------------------

func TestCreateExpense_201(t *testing.T) {
	tripID := uuid.New()
	plans := &mockPlanServicer{
		addExpense: func(_ context.Context, id uuid.UUID, in service.ExpenseInput) (domain.Expense, error) {
			assert.Equal(t, tripID, id)
			assert.Equal(t, 42.5, in.Amount)
			assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), in.DateIncurred)
			return domain.Expense{ID: uuid.New(), TripID: id, Title: in.Title, Amount: in.Amount, Currency: "EUR", DateIncurred: in.DateIncurred}, nil
		},
	}

	rec := do(t, newHTTPHandler(handler.Deps{Plans: plans}), http.MethodPost, "/trips/"+tripID.String()+"/expenses", map[string]any{
		"title": "Dinner", "amount": 42.5, "date_incurred": "2025-06-03",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[handler.Expense](t, rec)
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, "2025-06-03", resp.DateIncurred.Format(time.DateOnly))
}

func TestCreateExpense_422_NegativeAmount(t *testing.T) {
	plans := &mockPlanServicer{
		addExpense: func(context.Context, uuid.UUID, service.ExpenseInput) (domain.Expense, error) {
			return domain.Expense{}, domain.ErrNegativeAmount
		},
	}

	rec := do(t, newHTTPHandler(handler.Deps{Plans: plans}), http.MethodPost, "/trips/"+uuid.New().String()+"/expenses", map[string]any{
		"title": "Refund", "amount": -5,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- POST /parse/itinerary -------------------------------------------------

func TestParseItinerary_Heuristic(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/itinerary", map[string]any{
		"text":       "Day 1\n- Lisbon Cathedral\n- Dinner at Time Out Market\nDay 2\n- Sintra",
		"total_days": 2,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.ItineraryResponse](t, rec)
	assert.False(t, resp.Empty)
	require.Len(t, resp.Days, 2)
	assert.Len(t, resp.Days[0].Stops, 2)
	assert.Equal(t, 2, resp.Days[1].DayNumber)
}

func TestParseItinerary_EmptyText(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/itinerary", map[string]any{"text": "   "})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.ItineraryResponse](t, rec)
	assert.True(t, resp.Empty)
	assert.NotNil(t, resp.Days)
}

// ---- POST /trips/{id}/itinerary --------------------------------------------

type fixedParser struct {
	days      []itinerary.ParsedDay
	totalDays int
}

func (p *fixedParser) Parse(_ context.Context, _ string, totalDays int) []itinerary.ParsedDay {
	p.totalDays = totalDays
	return p.days
}

func TestImportItinerary_201(t *testing.T) {
	trip := tripFixture()
	parser := &fixedParser{days: []itinerary.ParsedDay{
		{DayNumber: 1, Stops: []itinerary.ParsedStop{{Name: "Alfama", Category: domain.CategoryAttraction, DurationMinutes: 120}}},
	}}
	trips := &mockTripServicer{get: func(uuid.UUID) (domain.Trip, error) { return trip, nil }}
	plans := &mockPlanServicer{
		importDays: func(_ context.Context, id uuid.UUID, parsed []itinerary.ParsedDay) (int, error) {
			assert.Equal(t, trip.ID, id)
			return len(parsed[0].Stops), nil
		},
	}
	h := newHTTPHandler(handler.Deps{Trips: trips, Plans: plans, Itinerary: parser})

	rec := do(t, h, http.MethodPost, "/trips/"+trip.ID.String()+"/itinerary", map[string]any{"text": "Day 1: Alfama"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[handler.ItineraryResponse](t, rec).Added)
	assert.Equal(t, trip.DayCount(), parser.totalDays)
}

func TestImportItinerary_NothingFound(t *testing.T) {
	trips := &mockTripServicer{get: func(uuid.UUID) (domain.Trip, error) { return tripFixture(), nil }}
	h := newHTTPHandler(handler.Deps{Trips: trips, Plans: &mockPlanServicer{}, Itinerary: &fixedParser{}})

	rec := do(t, h, http.MethodPost, "/trips/"+uuid.New().String()+"/itinerary", map[string]any{"text": "hello"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[handler.ItineraryResponse](t, rec).Empty)
}

// ---- POST /parse/booking ---------------------------------------------------

func TestParseBooking_Flight(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/booking", map[string]any{"text": flightEmail})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.ParsedBookings](t, rec)
	require.NotEmpty(t, resp.Bookings)
	assert.Equal(t, domain.BookingFlight, resp.Bookings[0].Type)
	assert.Equal(t, "QX7YTR", resp.Bookings[0].ConfirmationCode)
}

func TestParseBooking_HTML(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body><p>Confirmation code: QX7YTR</p><p>Flight TP 1234 from LIS to OPO</p></body></html>`

	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/booking", map[string]any{"html": html})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handler.ParsedBookings](t, rec)
	require.NotEmpty(t, resp.Bookings)
	assert.Equal(t, "QX7YTR", resp.Bookings[0].ConfirmationCode)
}

func TestParseBooking_ShortTextYieldsNothing(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/booking", map[string]any{"text": "hi there"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookings":[]}`, rec.Body.String())
}

func TestParseBooking_422_NoInput(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{}), http.MethodPost, "/parse/booking", map[string]any{})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- POST /trips/{id}/bookings/parse ---------------------------------------

func TestImportBookings_201(t *testing.T) {
	tripID := uuid.New()
	plans := &mockPlanServicer{
		addBookings: func(_ context.Context, id uuid.UUID, parsed []bookingmail.ParsedBooking) ([]domain.Booking, error) {
			assert.Equal(t, tripID, id)
			out := make([]domain.Booking, len(parsed))
			for i, p := range parsed {
				out[i] = p.Booking()
				out[i].ID, out[i].TripID = uuid.New(), id
			}
			return out, nil
		},
	}

	rec := do(t, newHTTPHandler(handler.Deps{Plans: plans}), http.MethodPost, "/trips/"+tripID.String()+"/bookings/parse", map[string]any{"text": flightEmail})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[handler.Bookings](t, rec)
	require.NotEmpty(t, resp.Bookings)
	assert.Equal(t, tripID, resp.Bookings[0].TripID)
}

// ---- POST /trips/{id}/geocode ----------------------------------------------

func TestGeocodeStops_200(t *testing.T) {
	plans := &mockPlanServicer{
		locate: func(_ context.Context, _ uuid.UUID, loc service.Locator) (int, error) {
			assert.NotNil(t, loc)
			return 3, nil
		},
	}
	h := newHTTPHandler(handler.Deps{Plans: plans, Locator: mockLocator{}})

	rec := do(t, h, http.MethodPost, "/trips/"+uuid.New().String()+"/geocode", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[handler.Located](t, rec).Located)
}

func TestGeocodeStops_503_NotConfigured(t *testing.T) {
	rec := do(t, newHTTPHandler(handler.Deps{Plans: &mockPlanServicer{}}), http.MethodPost, "/trips/"+uuid.New().String()+"/geocode", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", errorCode(t, rec))
}

func TestGeocodeStops_500_ResolverFailure(t *testing.T) {
	plans := &mockPlanServicer{
		locate: func(context.Context, uuid.UUID, service.Locator) (int, error) {
			return 0, errors.New("service.Manager.LocateStops: upstream timeout")
		},
	}
	h := newHTTPHandler(handler.Deps{Plans: plans, Locator: mockLocator{}})

	rec := do(t, h, http.MethodPost, "/trips/"+uuid.New().String()+"/geocode", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
