// Package geo resolves place names to coordinates. The lookup itself is an
// external collaborator behind Geocoder; this package adds a Redis cache in
// front of it and a throttled batch resolver for filling in stop locations.
package geo

import (
	"context"
	"errors"

	"github.com/pkordes/tripwit/internal/domain"
)

// ErrNoMatch is returned when a lookup finds nothing for the query.
var ErrNoMatch = errors.New("no matching place")

// Region biases a search towards an area, usually the trip destination.
type Region struct {
	Center   domain.Coordinate `json:"center"`
	RadiusKm float64           `json:"radius_km"`
}

// Place is one search hit.
type Place struct {
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	Coordinate domain.Coordinate `json:"coordinate"`
}

// Geocoder looks up places. Every call is fallible and may be slow.
type Geocoder interface {
	// Search returns places matching query, best match first. bias may be nil.
	Search(ctx context.Context, query string, bias *Region) ([]Place, error)
	// Reverse returns a human-readable address for c.
	Reverse(ctx context.Context, c domain.Coordinate) (string, error)
}
