package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// Export returns the flattened day/stop projection of a trip: one row per
// stop in day and sort order. Days with no stops contribute one row with
// empty stop fields.
func (m *Manager) Export(tripID uuid.UUID) ([]domain.ExportRow, error) {
	trip, err := graph.Get[domain.Trip](m.graph, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.Manager.Export: %w", err)
	}
	var rows []domain.ExportRow
	for _, d := range m.graph.Days(tripID) {
		base := domain.ExportRow{
			TripID:    trip.ID.String(),
			TripName:  trip.Name,
			DayNumber: d.DayNumber,
			DayNotes:  d.Notes,
		}
		if trip.HasCustomDates {
			base.Date = d.Date.Format("2006-01-02")
		}
		stops := m.graph.Stops(d.ID)
		if len(stops) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, s := range stops {
			row := base
			row.StopName = s.Name
			row.StopCategory = s.Category
			row.ArrivalTime = s.ArrivalTime
			row.DepartureTime = s.DepartureTime
			row.StopNotes = s.Notes
			rows = append(rows, row)
		}
	}
	return rows, nil
}
