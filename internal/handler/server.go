// Package handler implements the HTTP handlers for the Tripwit API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, etc.) but share the same Server struct so they
// can access its dependencies. NewRouter mounts them on a chi router.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/service"
	"github.com/pkordes/tripwit/internal/transfer"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the graph or the database.
type TripServicer interface {
	CreateTrip(ctx context.Context, in service.TripInput) (domain.Trip, error)
	Trip(id uuid.UUID) (domain.Trip, error)
	Trips() []domain.Trip
	UpdateTrip(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error)
	DeleteTrip(ctx context.Context, id uuid.UUID) error
	UpdateTripDates(ctx context.Context, id uuid.UUID, start, end *time.Time) (domain.Trip, error)
	DaysWithStopsOutsideRange(id uuid.UUID, start, end time.Time) (int, error)
	CloneTrip(ctx context.Context, id uuid.UUID, newStart time.Time) (domain.Trip, error)
	CompletionScore(id uuid.UUID) (float64, error)
	FindConflictingTrips(start, end time.Time, excluding uuid.UUID) []domain.Trip
	TotalExpenses(id uuid.UUID) (map[string]float64, error)
}

// StopServicer defines the stop operations the handlers depend on.
type StopServicer interface {
	AddStop(ctx context.Context, dayID uuid.UUID, in service.StopInput) (domain.Stop, error)
	UpdateStop(ctx context.Context, id uuid.UUID, in service.StopInput) (domain.Stop, error)
	MoveStop(ctx context.Context, stopID, targetDayID uuid.UUID) (domain.Stop, error)
	DeleteStop(ctx context.Context, id uuid.UUID) error
	MarkVisited(ctx context.Context, id uuid.UUID, visited bool, rating int) (domain.Stop, error)
}

// PlanServicer covers expenses, parsed-text imports and geocoding.
type PlanServicer interface {
	AddExpense(ctx context.Context, tripID uuid.UUID, in service.ExpenseInput) (domain.Expense, error)
	ImportParsedDays(ctx context.Context, tripID uuid.UUID, parsed []itinerary.ParsedDay) (int, error)
	AddParsedBookings(ctx context.Context, tripID uuid.UUID, parsed []bookingmail.ParsedBooking) ([]domain.Booking, error)
	LocateStops(ctx context.Context, tripID uuid.UUID, loc service.Locator) (int, error)
}

// TransferServicer covers the flat export and the .tripwit snapshot format.
type TransferServicer interface {
	Export(tripID uuid.UUID) ([]domain.ExportRow, error)
	ExportSnapshot(tripID uuid.UUID) (transfer.Snapshot, error)
	ImportSnapshot(ctx context.Context, s transfer.Snapshot) (domain.Trip, error)
}

// Sharer is the part of the sync controller behind the sharing endpoints.
type Sharer interface {
	ShareTrip(ctx context.Context, tripID uuid.UUID, permission domain.Permission) (domain.Invitation, error)
	ReceiveInvitation(inv domain.Invitation)
	AcceptShare(ctx context.Context, inv domain.Invitation) (bool, error)
	PollImport(ctx context.Context, tripID uuid.UUID) (domain.ShareState, error)
}

// ItineraryParser turns free-form text into day drafts.
type ItineraryParser interface {
	Parse(ctx context.Context, text string, totalDays int) []itinerary.ParsedDay
}

// Deps lists the Server's collaborators. Trips, Stops, Plans and Transfer
// are normally the same *service.Manager. Sharing and Locator may be nil,
// in which case their endpoints answer 503.
type Deps struct {
	Trips     TripServicer
	Stops     StopServicer
	Plans     PlanServicer
	Transfer  TransferServicer
	Sharing   Sharer
	Itinerary ItineraryParser
	Locator   service.Locator
}

// Server holds the dependencies of every handler.
type Server struct {
	trips     TripServicer
	stops     StopServicer
	plans     PlanServicer
	transfer  TransferServicer
	sharing   Sharer
	itinerary ItineraryParser
	locator   service.Locator
	now       func() time.Time
}

// NewServer constructs the Server with all its dependencies.
// A nil Itinerary falls back to the heuristic parser.
func NewServer(d Deps) *Server {
	if d.Itinerary == nil {
		d.Itinerary = itinerary.NewParser(nil, nil)
	}
	return &Server{
		trips:     d.Trips,
		stops:     d.Stops,
		plans:     d.Plans,
		transfer:  d.Transfer,
		sharing:   d.Sharing,
		itinerary: d.Itinerary,
		locator:   d.Locator,
		now:       time.Now,
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(Deps{})
}

// NewRouter mounts every endpoint of s on a fresh chi router. Callers add
// middleware with r.Use before or wrap the returned router.
func NewRouter(s *Server) chi.Router {
	r := chi.NewRouter()
	s.Mount(r)
	return r
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/trips", func(r chi.Router) {
		r.Post("/", s.CreateTrip)
		r.Get("/", s.ListTrips)
		r.Get("/conflicts", s.FindConflicts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.Put("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)
			r.Put("/dates", s.UpdateTripDates)
			r.Post("/clone", s.CloneTrip)
			r.Get("/score", s.GetScore)
			r.Get("/expenses", s.GetExpenseTotals)
			r.Post("/expenses", s.CreateExpense)
			r.Post("/itinerary", s.ImportItinerary)
			r.Post("/bookings/parse", s.ImportBookings)
			r.Post("/geocode", s.GeocodeStops)
			r.Get("/export", s.GetExport)
			r.Get("/transfer", s.GetTransfer)
			r.Post("/share", s.ShareTrip)
			r.Get("/share", s.GetShareState)
		})
	})

	r.Post("/days/{id}/stops", s.CreateStop)
	r.Route("/stops/{id}", func(r chi.Router) {
		r.Put("/", s.UpdateStop)
		r.Delete("/", s.DeleteStop)
		r.Post("/move", s.MoveStop)
		r.Post("/visited", s.MarkVisited)
	})

	r.Post("/parse/itinerary", s.ParseItinerary)
	r.Post("/parse/booking", s.ParseBooking)
	r.Post("/transfer", s.PostTransfer)
	r.Post("/shares/accept", s.AcceptShare)
}

// pathID parses the {id} URL parameter. It writes a 422 and returns false
// when the parameter is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
