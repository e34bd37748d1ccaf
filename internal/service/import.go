package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/transfer"
)

// dayStartHour is when imported stops begin on each day.
const dayStartHour = 9

// ImportParsedDays appends parsed stops to the trip's days by day number.
// Day numbers past the last day land on the last day. Each day's stops are
// scheduled back to back from 09:00 using their durations. It returns the
// number of stops added.
func (m *Manager) ImportParsedDays(ctx context.Context, tripID uuid.UUID, parsed []itinerary.ParsedDay) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, err := m.editableTrip(tripID)
	if err != nil {
		return 0, fmt.Errorf("service.Manager.ImportParsedDays: %w", err)
	}
	days := m.graph.Days(tripID)
	if len(days) == 0 {
		return 0, fmt.Errorf("service.Manager.ImportParsedDays: trip %s has no days: %w", tripID, domain.ErrNotFound)
	}

	added := 0
	for _, pd := range parsed {
		idx := max(1, min(pd.DayNumber, len(days))) - 1
		day := days[idx]
		order := len(m.graph.Stops(day.ID))
		clock := domain.DateOnly(day.Date).Add(dayStartHour * time.Hour)
		for _, ps := range pd.Stops {
			if strings.TrimSpace(ps.Name) == "" {
				continue
			}
			arrival := clock
			departure := clock.Add(time.Duration(ps.DurationMinutes) * time.Minute)
			clock = departure
			stop := domain.Stop{
				ID:            uuid.New(),
				DayID:         day.ID,
				Name:          strings.TrimSpace(ps.Name),
				Category:      ps.Category,
				Notes:         ps.Note,
				ArrivalTime:   &arrival,
				DepartureTime: &departure,
				SortOrder:     order,
			}
			if !stop.Category.Valid() {
				stop.Category = domain.CategoryAttraction
			}
			if err := m.graph.Put(stop); err != nil {
				return added, fmt.Errorf("service.Manager.ImportParsedDays: %w", err)
			}
			order++
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := m.finish(ctx, tripID, trip.Ref(), domain.OpUpdate); err != nil {
		return added, fmt.Errorf("service.Manager.ImportParsedDays: %w", err)
	}
	return added, nil
}

// ImportSnapshot inserts a transfer snapshot as a new trip with fresh IDs.
// Every record is validated before anything is inserted. The imported days
// are then synced to the trip's range so they are numbered 1..N with no
// missing date.
func (m *Manager) ImportSnapshot(ctx context.Context, s transfer.Snapshot) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateSnapshot(s); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.ImportSnapshot: %w", err)
	}
	trip, recs := s.Records(m.now())
	for _, r := range recs {
		if err := m.graph.Put(r); err != nil {
			return domain.Trip{}, fmt.Errorf("service.Manager.ImportSnapshot: %w", err)
		}
	}
	if err := m.syncDays(trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.ImportSnapshot: %w", err)
	}
	if err := m.finish(ctx, trip.ID, trip.Ref(), domain.OpInsert); err != nil {
		return trip, fmt.Errorf("service.Manager.ImportSnapshot: %w", err)
	}
	return graph.Get[domain.Trip](m.graph, trip.ID)
}

// validateSnapshot runs the record validators over the whole snapshot.
func validateSnapshot(s transfer.Snapshot) error {
	if err := domain.ValidateTrip(s.Name, s.Destination, s.StartDate, s.EndDate, s.HasCustomDates); err != nil {
		return err
	}
	if s.BudgetAmount < 0 {
		return domain.ErrNegativeAmount
	}
	for i, d := range s.Days {
		for j, st := range d.Stops {
			if err := validateSnapshotStop(st); err != nil {
				return fmt.Errorf("day %d, stop %d: %w", i+1, j+1, err)
			}
		}
	}
	for i, b := range s.Bookings {
		if err := domain.ValidateBooking(domain.Booking{Type: b.Type, Title: b.Title, Flight: b.Flight}); err != nil {
			return fmt.Errorf("booking %d: %w", i+1, err)
		}
	}
	for i, l := range s.Lists {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("list %d: %w", i+1, domain.ErrEmptyName)
		}
		for j, it := range l.Items {
			if strings.TrimSpace(it.Text) == "" {
				return fmt.Errorf("list %d, item %d: %w", i+1, j+1, domain.ErrEmptyText)
			}
		}
	}
	for i, e := range s.Expenses {
		if err := domain.ValidateExpense(e.Title, e.Amount); err != nil {
			return fmt.Errorf("expense %d: %w", i+1, err)
		}
	}
	return nil
}

func validateSnapshotStop(st transfer.Stop) error {
	if err := domain.ValidateStop(st.Name, st.ArrivalTime, st.DepartureTime); err != nil {
		return err
	}
	if st.Rating < 0 || st.Rating > 5 {
		return domain.ErrInvalidRating
	}
	for _, c := range st.Comments {
		if strings.TrimSpace(c.Text) == "" {
			return domain.ErrEmptyText
		}
	}
	for _, l := range st.Links {
		if strings.TrimSpace(l.URL) == "" {
			return domain.ErrEmptyURL
		}
	}
	for _, td := range st.Todos {
		if strings.TrimSpace(td.Text) == "" {
			return domain.ErrEmptyText
		}
	}
	return nil
}

// ExportSnapshot captures a trip for the transfer file.
func (m *Manager) ExportSnapshot(tripID uuid.UUID) (transfer.Snapshot, error) {
	s, err := transfer.FromGraph(m.graph, tripID, m.now())
	if err != nil {
		return transfer.Snapshot{}, fmt.Errorf("service.Manager.ExportSnapshot: %w", err)
	}
	return s, nil
}
