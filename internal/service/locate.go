package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/geo"
	"github.com/pkordes/tripwit/internal/graph"
)

// dayBiasRadiusKm bounds searches around a day's own location.
const dayBiasRadiusKm = 50

// Locator resolves stop locations. Implemented by geo.BatchResolver.
type Locator interface {
	Resolve(ctx context.Context, queries []geo.Query) ([]geo.Resolution, error)
}

// LocateStops fills in the coordinates of every stop of tripID that has
// none and returns how many were found. Lookups run without holding the
// manager lock; a stop edited in the meantime keeps its new coordinate.
// When ctx ends early the stops resolved so far are still saved.
func (m *Manager) LocateStops(ctx context.Context, tripID uuid.UUID, loc Locator) (int, error) {
	queries, err := m.locateQueries(tripID)
	if err != nil {
		return 0, fmt.Errorf("service.Manager.LocateStops: %w", err)
	}
	if len(queries) == 0 {
		return 0, nil
	}
	results, resolveErr := loc.Resolve(ctx, queries)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, res := range results {
		if !res.Found {
			continue
		}
		_, err := graph.Update(m.graph, res.StopID, func(s *domain.Stop) error {
			if s.Coordinate.IsSet() {
				return errAlreadyLocated
			}
			s.Coordinate = res.Coordinate
			return nil
		})
		if err == nil {
			n++
		}
	}
	if n > 0 {
		ref := domain.Ref{Kind: domain.KindTrip, ID: tripID}
		if err := m.finish(context.WithoutCancel(ctx), tripID, ref, domain.OpUpdate); err != nil {
			return n, fmt.Errorf("service.Manager.LocateStops: %w", err)
		}
	}
	if resolveErr != nil {
		return n, fmt.Errorf("service.Manager.LocateStops: %w", resolveErr)
	}
	return n, nil
}

var errAlreadyLocated = errors.New("stop already located")

func (m *Manager) locateQueries(tripID uuid.UUID) ([]geo.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, err := m.editableTrip(tripID)
	if err != nil {
		return nil, err
	}
	var queries []geo.Query
	for _, day := range m.graph.Days(tripID) {
		var bias *geo.Region
		if day.Coordinate.IsSet() {
			bias = &geo.Region{Center: day.Coordinate, RadiusKm: dayBiasRadiusKm}
		}
		for _, s := range m.graph.Stops(day.ID) {
			if s.Coordinate.IsSet() {
				continue
			}
			queries = append(queries, geo.Query{
				StopID: s.ID,
				Text:   locateText(s.Name, s.Address, trip.Destination),
				Bias:   bias,
			})
		}
	}
	return queries, nil
}

func locateText(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
