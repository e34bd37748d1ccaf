package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// GenerateDays deletes every day of the trip, stops included, and creates
// one day per date of its range numbered 1..N. Use it only when no stops
// exist yet; SyncDays preserves surviving days.
func (m *Manager) GenerateDays(ctx context.Context, tripID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, err := m.editableTrip(tripID)
	if err != nil {
		return fmt.Errorf("service.Manager.GenerateDays: %w", err)
	}
	if err := m.generateDays(trip); err != nil {
		return fmt.Errorf("service.Manager.GenerateDays: %w", err)
	}
	if err := m.finish(ctx, tripID, trip.Ref(), domain.OpUpdate); err != nil {
		return fmt.Errorf("service.Manager.GenerateDays: %w", err)
	}
	return nil
}

// SyncDays reconciles the trip's days with its current date range: days
// outside the range are deleted with their stops, missing dates get new
// days, and all days are renumbered 1..N in date order. Days whose date
// stays in range keep their identity and stops.
func (m *Manager) SyncDays(ctx context.Context, tripID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, err := m.editableTrip(tripID)
	if err != nil {
		return fmt.Errorf("service.Manager.SyncDays: %w", err)
	}
	if err := m.syncDays(trip); err != nil {
		return fmt.Errorf("service.Manager.SyncDays: %w", err)
	}
	if err := m.finish(ctx, tripID, trip.Ref(), domain.OpUpdate); err != nil {
		return fmt.Errorf("service.Manager.SyncDays: %w", err)
	}
	return nil
}

// DaysWithStopsOutsideRange counts the days of a trip that fall outside
// [start, end] and hold at least one stop, i.e. the days a SyncDays to that
// range would delete along with content.
func (m *Manager) DaysWithStopsOutsideRange(tripID uuid.UUID, start, end time.Time) (int, error) {
	if _, err := graph.Get[domain.Trip](m.graph, tripID); err != nil {
		return 0, fmt.Errorf("service.Manager.DaysWithStopsOutsideRange: %w", err)
	}
	n := 0
	for _, d := range m.graph.Days(tripID) {
		if domain.InRange(d.Date, start, end) {
			continue
		}
		if len(m.graph.Stops(d.ID)) > 0 {
			n++
		}
	}
	return n, nil
}

// UpdateTripDates changes a trip's date range. Nil dates make the trip
// undated, keeping one planning day on its current start date. A trip
// without stops has its days regenerated; otherwise its days are synced.
func (m *Manager) UpdateTripDates(ctx context.Context, tripID uuid.UUID, start, end *time.Time) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.editableTrip(tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTripDates: %w", err)
	}
	in := TripInput{Name: cur.Name, Destination: cur.Destination, StartDate: start, EndDate: end}
	newStart, newEnd, custom := in.dates(cur.StartDate)
	if err := domain.ValidateTrip(cur.Name, cur.Destination, newStart, newEnd, custom); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTripDates: %w", err)
	}

	hadStops := m.tripHasStops(tripID)
	trip, err := graph.Update(m.graph, tripID, func(t *domain.Trip) error {
		t.StartDate, t.EndDate, t.HasCustomDates = newStart, newEnd, custom
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTripDates: %w", err)
	}
	if hadStops {
		err = m.syncDays(trip)
	} else {
		err = m.generateDays(trip)
	}
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.UpdateTripDates: %w", err)
	}
	if err := m.finish(ctx, tripID, trip.Ref(), domain.OpUpdate); err != nil {
		return trip, fmt.Errorf("service.Manager.UpdateTripDates: %w", err)
	}
	return graph.Get[domain.Trip](m.graph, tripID)
}

func (m *Manager) editableTrip(tripID uuid.UUID) (domain.Trip, error) {
	trip, err := graph.Get[domain.Trip](m.graph, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := m.checkEdit(trip.Ref()); err != nil {
		return domain.Trip{}, err
	}
	return trip, nil
}

func (m *Manager) tripHasStops(tripID uuid.UUID) bool {
	for _, d := range m.graph.Days(tripID) {
		if len(m.graph.Stops(d.ID)) > 0 {
			return true
		}
	}
	return false
}

func (m *Manager) generateDays(trip domain.Trip) error {
	for _, d := range m.graph.Days(trip.ID) {
		if err := m.graph.Delete(d.Ref()); err != nil {
			return err
		}
	}
	for i, date := range domain.DateRange(trip.StartDate, trip.EndDate) {
		if err := m.graph.Put(newDay(trip, date, i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) syncDays(trip domain.Trip) error {
	covered := make(map[time.Time]bool)
	for _, d := range m.graph.Days(trip.ID) {
		date := domain.DateOnly(d.Date)
		if !domain.InRange(date, trip.StartDate, trip.EndDate) || covered[date] {
			if err := m.graph.Delete(d.Ref()); err != nil {
				return err
			}
			continue
		}
		covered[date] = true
	}
	for _, date := range domain.DateRange(trip.StartDate, trip.EndDate) {
		if covered[date] {
			continue
		}
		if err := m.graph.Put(newDay(trip, date, 0)); err != nil {
			return err
		}
	}
	// Days are listed in date order, so the index is the new number.
	for i, d := range m.graph.Days(trip.ID) {
		if d.DayNumber == i+1 {
			continue
		}
		if _, err := graph.Update(m.graph, d.ID, func(day *domain.Day) error {
			day.DayNumber = i + 1
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func newDay(trip domain.Trip, date time.Time, number int) domain.Day {
	return domain.Day{
		ID:        uuid.New(),
		TripID:    trip.ID,
		Date:      domain.DateOnly(date),
		DayNumber: number,
		Location:  trip.Destination,
	}
}
