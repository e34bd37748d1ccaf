package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// TripInput holds the user-editable fields of a trip. Nil StartDate and
// EndDate make an undated trip with a single planning day.
type TripInput struct {
	Name           string
	Destination    string
	StartDate      *time.Time
	EndDate        *time.Time
	Notes          string
	Status         domain.TripStatus
	BudgetAmount   float64
	BudgetCurrency string
}

// dates resolves the input's date range. Undated trips are pinned to
// fallback so they still own exactly one day.
func (in TripInput) dates(fallback time.Time) (start, end time.Time, custom bool) {
	if in.StartDate == nil || in.EndDate == nil {
		d := domain.DateOnly(fallback)
		return d, d, false
	}
	return domain.DateOnly(*in.StartDate), domain.DateOnly(*in.EndDate), true
}

func validateTripInput(in TripInput, start, end time.Time, custom bool) error {
	if err := domain.ValidateTrip(in.Name, in.Destination, start, end, custom); err != nil {
		return err
	}
	if in.BudgetAmount < 0 {
		return domain.ErrNegativeAmount
	}
	return nil
}

// CreateTrip validates in, creates the trip and its days, and saves.
func (m *Manager) CreateTrip(ctx context.Context, in TripInput) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	start, end, custom := in.dates(now)
	if err := validateTripInput(in, start, end, custom); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.CreateTrip: %w", err)
	}
	trip := domain.Trip{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(in.Name),
		Destination:    strings.TrimSpace(in.Destination),
		StartDate:      start,
		EndDate:        end,
		HasCustomDates: custom,
		Status:         domain.TripStatusPlanning,
		Notes:          in.Notes,
		BudgetAmount:   in.BudgetAmount,
		BudgetCurrency: currencyOr(in.BudgetCurrency),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Status.Valid() {
		trip.Status = in.Status
	}
	if err := m.graph.Put(trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.CreateTrip: %w", err)
	}
	if err := m.generateDays(trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.CreateTrip: %w", err)
	}
	if err := m.finish(ctx, trip.ID, trip.Ref(), domain.OpInsert); err != nil {
		return trip, fmt.Errorf("service.Manager.CreateTrip: %w", err)
	}
	return graph.Get[domain.Trip](m.graph, trip.ID)
}

// Trip returns a trip by ID.
func (m *Manager) Trip(id uuid.UUID) (domain.Trip, error) {
	trip, err := graph.Get[domain.Trip](m.graph, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.Trip: %w", err)
	}
	return trip, nil
}

// Trips returns all trips, most recent start date first.
func (m *Manager) Trips() []domain.Trip {
	return m.graph.Trips()
}

// UpdateTrip replaces the descriptive fields of a trip. Dates are changed
// through UpdateTripDates, which may delete days.
func (m *Manager) UpdateTrip(ctx context.Context, id uuid.UUID, in TripInput) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := domain.Ref{Kind: domain.KindTrip, ID: id}
	if err := m.checkEdit(ref); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTrip: %w", err)
	}
	trip, err := graph.Update(m.graph, id, func(t *domain.Trip) error {
		if err := validateTripInput(in, t.StartDate, t.EndDate, t.HasCustomDates); err != nil {
			return err
		}
		t.Name = strings.TrimSpace(in.Name)
		t.Destination = strings.TrimSpace(in.Destination)
		t.Notes = in.Notes
		if in.Status.Valid() {
			t.Status = in.Status
		}
		t.BudgetAmount = in.BudgetAmount
		t.BudgetCurrency = currencyOr(in.BudgetCurrency)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTrip: %w", err)
	}
	if err := m.finish(ctx, id, ref, domain.OpUpdate); err != nil {
		return trip, fmt.Errorf("service.Manager.UpdateTrip: %w", err)
	}
	return graph.Get[domain.Trip](m.graph, id)
}

// DeleteTrip removes a trip and everything it owns.
func (m *Manager) DeleteTrip(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := domain.Ref{Kind: domain.KindTrip, ID: id}
	if err := m.checkEdit(ref); err != nil {
		return fmt.Errorf("service.Manager.DeleteTrip: %w", err)
	}
	if err := m.graph.Delete(ref); err != nil {
		return fmt.Errorf("service.Manager.DeleteTrip: %w", err)
	}
	if err := m.finish(ctx, id, ref, domain.OpDelete); err != nil {
		return fmt.Errorf("service.Manager.DeleteTrip: %w", err)
	}
	return nil
}

// FindConflictingTrips returns the trips other than excluding whose date
// range overlaps [start, end] by at least one day. Undated trips never
// conflict.
func (m *Manager) FindConflictingTrips(start, end time.Time, excluding uuid.UUID) []domain.Trip {
	var out []domain.Trip
	for _, t := range m.graph.Trips() {
		if t.ID == excluding || !t.HasCustomDates {
			continue
		}
		if domain.Overlaps(start, end, t.StartDate, t.EndDate) {
			out = append(out, t)
		}
	}
	return out
}

// CompletionScore returns the share, in fifths, of these readiness checks
// that pass: the trip has a stop, has a booking, every day has a stop, has
// a positive budget, and has a list with at least one item.
func (m *Manager) CompletionScore(tripID uuid.UUID) (float64, error) {
	trip, err := graph.Get[domain.Trip](m.graph, tripID)
	if err != nil {
		return 0, fmt.Errorf("service.Manager.CompletionScore: %w", err)
	}

	days := m.graph.Days(tripID)
	anyStop, everyDay := false, len(days) > 0
	for _, d := range days {
		if len(m.graph.Stops(d.ID)) > 0 {
			anyStop = true
		} else {
			everyDay = false
		}
	}
	anyListItem := false
	for _, l := range m.graph.Lists(tripID) {
		if len(m.graph.ListItems(l.ID)) > 0 {
			anyListItem = true
			break
		}
	}

	criteria := []bool{
		anyStop,
		len(m.graph.Bookings(tripID)) > 0,
		everyDay,
		trip.BudgetAmount > 0,
		anyListItem,
	}
	met := 0
	for _, ok := range criteria {
		if ok {
			met++
		}
	}
	return float64(met) / float64(len(criteria)), nil
}

// TotalExpenses sums a trip's expenses per currency.
func (m *Manager) TotalExpenses(tripID uuid.UUID) (map[string]float64, error) {
	if _, err := graph.Get[domain.Trip](m.graph, tripID); err != nil {
		return nil, fmt.Errorf("service.Manager.TotalExpenses: %w", err)
	}
	totals := make(map[string]float64)
	for _, e := range m.graph.Expenses(tripID) {
		totals[currencyOr(e.Currency)] += e.Amount
	}
	return totals, nil
}

func currencyOr(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return domain.DefaultCurrency
	}
	return c
}

// RelocateTrip moves a trip and everything it owns into store and saves.
// Sharing uses it to move a trip from the private to the shared store.
func (m *Manager) RelocateTrip(ctx context.Context, tripID uuid.UUID, store string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := domain.Ref{Kind: domain.KindTrip, ID: tripID}
	if err := m.graph.Relocate(tripID, store); err != nil {
		return fmt.Errorf("service.Manager.RelocateTrip: %w", err)
	}
	if err := m.finish(ctx, tripID, ref, domain.OpUpdate); err != nil {
		return fmt.Errorf("service.Manager.RelocateTrip: %w", err)
	}
	return nil
}
