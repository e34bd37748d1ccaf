package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// CloneTrip deep-copies a trip as a template starting on newStart. Days,
// stops (with comments, links and todos), bookings and lists are copied with
// every date shifted by the same offset. Progress is reset: the clone is
// planning, stops are unvisited, todos open, list items unchecked and
// booking confirmation codes blank. Expenses are not copied.
func (m *Manager) CloneTrip(ctx context.Context, sourceID uuid.UUID, newStart time.Time) (domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := graph.Get[domain.Trip](m.graph, sourceID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.Manager.CloneTrip: %w", err)
	}
	now := m.now().UTC()
	newStart = domain.DateOnly(newStart)
	offset := newStart.Sub(domain.DateOnly(src.StartDate))
	shift := func(t time.Time) time.Time { return t.Add(offset) }
	shiftPtr := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := shift(*t)
		return &v
	}

	trip := src
	trip.ID = uuid.New()
	trip.Name = src.Name + " (Copy)"
	trip.StartDate = newStart
	trip.EndDate = shift(domain.DateOnly(src.EndDate))
	trip.Status = domain.TripStatusPlanning
	trip.CreatedAt, trip.UpdatedAt = now, now
	recs := []domain.Record{trip}

	for _, d := range m.graph.Days(sourceID) {
		day := d
		day.ID, day.TripID, day.Date = uuid.New(), trip.ID, shift(domain.DateOnly(d.Date))
		recs = append(recs, day)
		for _, s := range m.graph.Stops(d.ID) {
			stop := s
			stop.ID, stop.DayID = uuid.New(), day.ID
			stop.ArrivalTime = shiftPtr(s.ArrivalTime)
			stop.DepartureTime = shiftPtr(s.DepartureTime)
			stop.CheckOutDate = shiftPtr(s.CheckOutDate)
			stop.Visited, stop.VisitedAt, stop.Rating = false, nil, 0
			recs = append(recs, stop)
			for _, c := range m.graph.Comments(s.ID) {
				c.ID, c.StopID = uuid.New(), stop.ID
				recs = append(recs, c)
			}
			for _, l := range m.graph.Links(s.ID) {
				l.ID, l.StopID = uuid.New(), stop.ID
				recs = append(recs, l)
			}
			for _, td := range m.graph.Todos(s.ID) {
				td.ID, td.StopID, td.Completed = uuid.New(), stop.ID, false
				recs = append(recs, td)
			}
		}
	}
	for _, b := range m.graph.Bookings(sourceID) {
		b.ID, b.TripID, b.ConfirmationCode = uuid.New(), trip.ID, ""
		if b.Flight != nil {
			f := *b.Flight
			f.DepartureTime, f.ArrivalTime = shiftPtr(f.DepartureTime), shiftPtr(f.ArrivalTime)
			b.Flight = &f
		}
		if b.Hotel != nil {
			h := *b.Hotel
			h.CheckIn, h.CheckOut = shiftPtr(h.CheckIn), shiftPtr(h.CheckOut)
			b.Hotel = &h
		}
		if b.CarRental != nil {
			c := *b.CarRental
			c.PickupTime, c.ReturnTime = shiftPtr(c.PickupTime), shiftPtr(c.ReturnTime)
			b.CarRental = &c
		}
		recs = append(recs, b)
	}
	for _, l := range m.graph.Lists(sourceID) {
		list := l
		list.ID, list.TripID = uuid.New(), trip.ID
		recs = append(recs, list)
		for _, it := range m.graph.ListItems(l.ID) {
			it.ID, it.ListID, it.Checked = uuid.New(), list.ID, false
			recs = append(recs, it)
		}
	}

	for _, r := range recs {
		if err := m.graph.Put(r); err != nil {
			return domain.Trip{}, fmt.Errorf("service.Manager.CloneTrip: %w", err)
		}
	}
	if err := m.finish(ctx, trip.ID, trip.Ref(), domain.OpInsert); err != nil {
		return trip, fmt.Errorf("service.Manager.CloneTrip: %w", err)
	}
	return graph.Get[domain.Trip](m.graph, trip.ID)
}
