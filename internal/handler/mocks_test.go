package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/geo"
	"github.com/pkordes/tripwit/internal/handler"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/service"
	"github.com/pkordes/tripwit/internal/transfer"
)

// ---- mockTripServicer ----

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create        func(ctx context.Context, in service.TripInput) (domain.Trip, error)
	get           func(id uuid.UUID) (domain.Trip, error)
	list          func() []domain.Trip
	update        func(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error)
	delete        func(ctx context.Context, id uuid.UUID) error
	updateDates   func(ctx context.Context, id uuid.UUID, start, end *time.Time) (domain.Trip, error)
	outsideRange  func(id uuid.UUID, start, end time.Time) (int, error)
	clone         func(ctx context.Context, id uuid.UUID, newStart time.Time) (domain.Trip, error)
	score         func(id uuid.UUID) (float64, error)
	conflicts     func(start, end time.Time, excluding uuid.UUID) []domain.Trip
	totalExpenses func(id uuid.UUID) (map[string]float64, error)
}

var _ handler.TripServicer = (*mockTripServicer)(nil)

func (m *mockTripServicer) CreateTrip(ctx context.Context, in service.TripInput) (domain.Trip, error) {
	return m.create(ctx, in)
}
func (m *mockTripServicer) Trip(id uuid.UUID) (domain.Trip, error) { return m.get(id) }
func (m *mockTripServicer) Trips() []domain.Trip                   { return m.list() }
func (m *mockTripServicer) UpdateTrip(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error) {
	return m.update(ctx, id, in)
}
func (m *mockTripServicer) DeleteTrip(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockTripServicer) UpdateTripDates(ctx context.Context, id uuid.UUID, start, end *time.Time) (domain.Trip, error) {
	return m.updateDates(ctx, id, start, end)
}
func (m *mockTripServicer) DaysWithStopsOutsideRange(id uuid.UUID, start, end time.Time) (int, error) {
	return m.outsideRange(id, start, end)
}
func (m *mockTripServicer) CloneTrip(ctx context.Context, id uuid.UUID, newStart time.Time) (domain.Trip, error) {
	return m.clone(ctx, id, newStart)
}
func (m *mockTripServicer) CompletionScore(id uuid.UUID) (float64, error) { return m.score(id) }
func (m *mockTripServicer) FindConflictingTrips(start, end time.Time, excluding uuid.UUID) []domain.Trip {
	return m.conflicts(start, end, excluding)
}
func (m *mockTripServicer) TotalExpenses(id uuid.UUID) (map[string]float64, error) {
	return m.totalExpenses(id)
}

// ---- mockStopServicer ----

type mockStopServicer struct {
	add         func(ctx context.Context, dayID uuid.UUID, in service.StopInput) (domain.Stop, error)
	update      func(ctx context.Context, id uuid.UUID, in service.StopInput) (domain.Stop, error)
	move        func(ctx context.Context, stopID, dayID uuid.UUID) (domain.Stop, error)
	delete      func(ctx context.Context, id uuid.UUID) error
	markVisited func(ctx context.Context, id uuid.UUID, visited bool, rating int) (domain.Stop, error)
}

var _ handler.StopServicer = (*mockStopServicer)(nil)

func (m *mockStopServicer) AddStop(ctx context.Context, dayID uuid.UUID, in service.StopInput) (domain.Stop, error) {
	return m.add(ctx, dayID, in)
}
func (m *mockStopServicer) UpdateStop(ctx context.Context, id uuid.UUID, in service.StopInput) (domain.Stop, error) {
	return m.update(ctx, id, in)
}
func (m *mockStopServicer) MoveStop(ctx context.Context, stopID, dayID uuid.UUID) (domain.Stop, error) {
	return m.move(ctx, stopID, dayID)
}
func (m *mockStopServicer) DeleteStop(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockStopServicer) MarkVisited(ctx context.Context, id uuid.UUID, visited bool, rating int) (domain.Stop, error) {
	return m.markVisited(ctx, id, visited, rating)
}

// ---- mockPlanServicer ----

type mockPlanServicer struct {
	addExpense  func(ctx context.Context, tripID uuid.UUID, in service.ExpenseInput) (domain.Expense, error)
	importDays  func(ctx context.Context, tripID uuid.UUID, parsed []itinerary.ParsedDay) (int, error)
	addBookings func(ctx context.Context, tripID uuid.UUID, parsed []bookingmail.ParsedBooking) ([]domain.Booking, error)
	locate      func(ctx context.Context, tripID uuid.UUID, loc service.Locator) (int, error)
}

var _ handler.PlanServicer = (*mockPlanServicer)(nil)

func (m *mockPlanServicer) AddExpense(ctx context.Context, tripID uuid.UUID, in service.ExpenseInput) (domain.Expense, error) {
	return m.addExpense(ctx, tripID, in)
}
func (m *mockPlanServicer) ImportParsedDays(ctx context.Context, tripID uuid.UUID, parsed []itinerary.ParsedDay) (int, error) {
	return m.importDays(ctx, tripID, parsed)
}
func (m *mockPlanServicer) AddParsedBookings(ctx context.Context, tripID uuid.UUID, parsed []bookingmail.ParsedBooking) ([]domain.Booking, error) {
	return m.addBookings(ctx, tripID, parsed)
}
func (m *mockPlanServicer) LocateStops(ctx context.Context, tripID uuid.UUID, loc service.Locator) (int, error) {
	return m.locate(ctx, tripID, loc)
}

// ---- mockTransferServicer ----

type mockTransferServicer struct {
	export         func(tripID uuid.UUID) ([]domain.ExportRow, error)
	exportSnapshot func(tripID uuid.UUID) (transfer.Snapshot, error)
	importSnapshot func(ctx context.Context, s transfer.Snapshot) (domain.Trip, error)
}

var _ handler.TransferServicer = (*mockTransferServicer)(nil)

func (m *mockTransferServicer) Export(tripID uuid.UUID) ([]domain.ExportRow, error) {
	return m.export(tripID)
}
func (m *mockTransferServicer) ExportSnapshot(tripID uuid.UUID) (transfer.Snapshot, error) {
	return m.exportSnapshot(tripID)
}
func (m *mockTransferServicer) ImportSnapshot(ctx context.Context, s transfer.Snapshot) (domain.Trip, error) {
	return m.importSnapshot(ctx, s)
}

// ---- mockSharer ----

type mockSharer struct {
	share      func(ctx context.Context, tripID uuid.UUID, p domain.Permission) (domain.Invitation, error)
	accept     func(ctx context.Context, inv domain.Invitation) (bool, error)
	pollImport func(ctx context.Context, tripID uuid.UUID) (domain.ShareState, error)
	received   []domain.Invitation
}

var _ handler.Sharer = (*mockSharer)(nil)

func (m *mockSharer) ShareTrip(ctx context.Context, tripID uuid.UUID, p domain.Permission) (domain.Invitation, error) {
	return m.share(ctx, tripID, p)
}
func (m *mockSharer) ReceiveInvitation(inv domain.Invitation) { m.received = append(m.received, inv) }
func (m *mockSharer) AcceptShare(ctx context.Context, inv domain.Invitation) (bool, error) {
	return m.accept(ctx, inv)
}
func (m *mockSharer) PollImport(ctx context.Context, tripID uuid.UUID) (domain.ShareState, error) {
	return m.pollImport(ctx, tripID)
}

// ---- mockLocator ----

type mockLocator struct{}

var _ service.Locator = mockLocator{}

func (mockLocator) Resolve(context.Context, []geo.Query) ([]geo.Resolution, error) { return nil, nil }

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks into the chi router.
// This mirrors how main.go wires it in production.
func newHTTPHandler(d handler.Deps) http.Handler {
	return handler.NewRouter(handler.NewServer(d))
}

// do sends a request through h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the recorder body into a fresh T.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec).Error.Code
}

func tripFixture() domain.Trip {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	return domain.Trip{
		ID:             uuid.New(),
		Name:           "Summer in Portugal",
		Destination:    "Lisbon",
		StartDate:      start,
		EndDate:        end,
		HasCustomDates: true,
		Status:         domain.TripStatusPlanning,
		Notes:          "test notes",
		BudgetCurrency: domain.DefaultCurrency,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}
