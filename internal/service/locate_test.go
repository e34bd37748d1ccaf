package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/geo"
	"github.com/pkordes/tripwit/internal/graph"
	"github.com/pkordes/tripwit/internal/service"
)

// ---- mockLocator ----

type mockLocator struct {
	resolve func(ctx context.Context, queries []geo.Query) ([]geo.Resolution, error)
	seen    []geo.Query
}

var _ service.Locator = (*mockLocator)(nil)

func (m *mockLocator) Resolve(ctx context.Context, queries []geo.Query) ([]geo.Resolution, error) {
	m.seen = append(m.seen, queries...)
	return m.resolve(ctx, queries)
}

func TestLocateStops_FillsMissingCoordinates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trip := h.createTrip(t, june1, june3)
	day := h.g.Days(trip.ID)[0]

	louvre := h.addStop(t, day.ID, "Louvre")
	placed, err := h.m.AddStop(ctx, day.ID, service.StopInput{
		Name: "Hotel", Coordinate: domain.Coordinate{Latitude: 1, Longitude: 2},
	})
	require.NoError(t, err)
	lost := h.addStop(t, day.ID, "Nowhere")
	commits := len(h.store.txs)

	at := domain.Coordinate{Latitude: 48.8606, Longitude: 2.3376}
	loc := &mockLocator{resolve: func(_ context.Context, qs []geo.Query) ([]geo.Resolution, error) {
		out := make([]geo.Resolution, 0, len(qs))
		for _, q := range qs {
			out = append(out, geo.Resolution{StopID: q.StopID, Coordinate: at, Found: q.StopID == louvre.ID})
		}
		return out, nil
	}}

	n, err := h.m.LocateStops(ctx, trip.ID, loc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, loc.seen, 2, "stops that already have a location are not looked up")
	assert.Equal(t, "Louvre, Paris, France", loc.seen[0].Text)
	assert.Nil(t, loc.seen[0].Bias)

	got, err := graph.Get[domain.Stop](h.g, louvre.ID)
	require.NoError(t, err)
	assert.Equal(t, at, got.Coordinate)

	unchanged, err := graph.Get[domain.Stop](h.g, lost.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.Coordinate.IsSet())

	hotel, err := graph.Get[domain.Stop](h.g, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Latitude: 1, Longitude: 2}, hotel.Coordinate)

	assert.Len(t, h.store.txs, commits+1, "all located stops are saved together")
}

func TestLocateStops_NothingToDo(t *testing.T) {
	h := newHarness(t)
	trip := h.createTrip(t, june1, june1)
	loc := &mockLocator{resolve: func(context.Context, []geo.Query) ([]geo.Resolution, error) {
		t.Fatal("resolver must not be called")
		return nil, nil
	}}

	n, err := h.m.LocateStops(context.Background(), trip.ID, loc)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLocateStops_PartialResultsSavedOnCancel(t *testing.T) {
	h := newHarness(t)
	trip := h.createTrip(t, june1, june1)
	day := h.g.Days(trip.ID)[0]
	first := h.addStop(t, day.ID, "Louvre")
	h.addStop(t, day.ID, "Orsay")

	ctx, cancel := context.WithCancel(context.Background())
	at := domain.Coordinate{Latitude: 48.86, Longitude: 2.33}
	loc := &mockLocator{resolve: func(_ context.Context, qs []geo.Query) ([]geo.Resolution, error) {
		cancel()
		return []geo.Resolution{{StopID: qs[0].StopID, Coordinate: at, Found: true}}, context.Canceled
	}}

	n, err := h.m.LocateStops(ctx, trip.ID, loc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)

	got, err := graph.Get[domain.Stop](h.g, first.ID)
	require.NoError(t, err)
	assert.Equal(t, at, got.Coordinate)
	assert.False(t, h.g.HasPending(), "partial results are committed despite the cancelled context")
}

func TestLocateStops_UnknownTrip(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.LocateStops(context.Background(), uuid.New(), &mockLocator{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
