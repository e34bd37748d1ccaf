package graph_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// ---- helpers ---------------------------------------------------------------

type fixture struct {
	g       *graph.Graph
	trip    domain.Trip
	day     domain.Day
	stop    domain.Stop
	comment domain.Comment
}

// newFixture builds trip → day → stop → comment and clears the pending queue
// so tests start from a "saved" state.
func newFixture(t *testing.T) fixture {
	t.Helper()
	g := graph.New("private")
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trip := domain.Trip{ID: uuid.New(), Name: "Paris", Destination: "Paris", StartDate: start, EndDate: start, HasCustomDates: true}
	day := domain.Day{ID: uuid.New(), TripID: trip.ID, Date: start, DayNumber: 1}
	stop := domain.Stop{ID: uuid.New(), DayID: day.ID, Name: "Louvre", Category: domain.CategoryAttraction}
	comment := domain.Comment{ID: uuid.New(), StopID: stop.ID, Text: "book ahead"}

	for _, rec := range []domain.Record{trip, day, stop, comment} {
		require.NoError(t, g.Put(rec))
	}
	g.TakePending()
	return fixture{g: g, trip: trip, day: day, stop: stop, comment: comment}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ---- Put -------------------------------------------------------------------

func TestPut_RequiresParent(t *testing.T) {
	g := graph.New("private")

	err := g.Put(domain.Day{ID: uuid.New(), TripID: uuid.New()})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPut_ChildInheritsParentStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.g.Relocate(f.trip.ID, "shared"))
	f.g.TakePending()

	todo := domain.Todo{ID: uuid.New(), StopID: f.stop.ID, Text: "tickets"}
	require.NoError(t, f.g.Put(todo))

	store, ok := f.g.StoreOf(todo.Ref())
	require.True(t, ok)
	assert.Equal(t, "shared", store)
}

func TestPut_UnchangedRecordQueuesNothing(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.g.Put(f.stop))

	assert.False(t, f.g.HasPending())
}

func TestUpdate_QueuesOnlyChangedFields(t *testing.T) {
	f := newFixture(t)

	_, err := graph.Update(f.g, f.stop.ID, func(s *domain.Stop) error {
		s.Notes = "closed tuesdays"
		return nil
	})
	require.NoError(t, err)

	changes := f.g.TakePending()
	require.Len(t, changes, 1)
	assert.Equal(t, domain.OpUpdate, changes[0].Op)
	assert.Equal(t, f.trip.ID, changes[0].TripID)
	assert.Contains(t, changes[0].Fields, "notes")
	assert.NotContains(t, changes[0].Fields, "name")
}

func TestUpdate_MoveReindexesChildren(t *testing.T) {
	f := newFixture(t)
	day2 := domain.Day{ID: uuid.New(), TripID: f.trip.ID, Date: f.day.Date.AddDate(0, 0, 1), DayNumber: 2}
	require.NoError(t, f.g.Put(day2))

	_, err := graph.Update(f.g, f.stop.ID, func(s *domain.Stop) error {
		s.DayID = day2.ID
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, f.g.Stops(f.day.ID))
	assert.Len(t, f.g.Stops(day2.ID), 1)
}

// ---- Delete ----------------------------------------------------------------

func TestDelete_CascadesToDescendants(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.g.Delete(f.trip.Ref()))

	assert.Equal(t, 0, f.g.Len())
	changes := f.g.TakePending()
	require.Len(t, changes, 4)
	// Children are deleted before their parents.
	assert.Equal(t, domain.KindComment, changes[0].Ref.Kind)
	assert.Equal(t, domain.KindTrip, changes[3].Ref.Kind)
	for _, c := range changes {
		assert.Equal(t, domain.OpDelete, c.Op)
		assert.Equal(t, f.trip.ID, c.TripID)
	}
}

func TestDelete_Missing(t *testing.T) {
	g := graph.New("private")

	err := g.Delete(domain.Ref{Kind: domain.KindStop, ID: uuid.New()})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_UnsavedInsertCancelsOut(t *testing.T) {
	f := newFixture(t)
	link := domain.Link{ID: uuid.New(), StopID: f.stop.ID, Title: "site", URL: "https://example.com"}
	require.NoError(t, f.g.Put(link))

	require.NoError(t, f.g.Delete(link.Ref()))

	assert.Empty(t, f.g.TakePending())
}

// ---- OwningTrip ------------------------------------------------------------

func TestOwningTrip_WalksUpFromNestedRecords(t *testing.T) {
	f := newFixture(t)

	for _, ref := range []domain.Ref{f.trip.Ref(), f.day.Ref(), f.stop.Ref(), f.comment.Ref()} {
		trip, ok := f.g.OwningTrip(ref)
		require.True(t, ok, ref.String())
		assert.Equal(t, f.trip.ID, trip.ID)
	}
}

func TestOwningTrip_WishlistHasNoOwner(t *testing.T) {
	g := graph.New("private")
	item := domain.WishlistItem{ID: uuid.New(), Name: "Kyoto"}
	require.NoError(t, g.Put(item))

	_, ok := g.OwningTrip(item.Ref())

	assert.False(t, ok)
}

// ---- Pending queue ---------------------------------------------------------

func TestPending_InsertThenUpdateCoalesces(t *testing.T) {
	f := newFixture(t)
	todo := domain.Todo{ID: uuid.New(), StopID: f.stop.ID, Text: "tickets"}
	require.NoError(t, f.g.Put(todo))
	_, err := graph.Update(f.g, todo.ID, func(td *domain.Todo) error {
		td.Completed = true
		return nil
	})
	require.NoError(t, err)

	changes := f.g.TakePending()

	require.Len(t, changes, 1)
	assert.Equal(t, domain.OpInsert, changes[0].Op)
	var saved domain.Todo
	require.NoError(t, json.Unmarshal(changes[0].Record, &saved))
	assert.True(t, saved.Completed)
}

func TestRequeue_KeepsFailedChangesFirst(t *testing.T) {
	f := newFixture(t)
	_, err := graph.Update(f.g, f.stop.ID, func(s *domain.Stop) error { s.Notes = "a"; return nil })
	require.NoError(t, err)
	failed := f.g.TakePending()

	_, err = graph.Update(f.g, f.day.ID, func(d *domain.Day) error { d.Notes = "b"; return nil })
	require.NoError(t, err)
	f.g.Requeue(failed)

	changes := f.g.TakePending()
	require.Len(t, changes, 2)
	assert.Equal(t, f.stop.Ref(), changes[0].Ref)
	assert.Equal(t, f.day.Ref(), changes[1].Ref)
}

// ---- ApplyRemote -----------------------------------------------------------

func TestApplyRemote_RemoteValueWinsOverLocalEdit(t *testing.T) {
	f := newFixture(t)
	_, err := graph.Update(f.g, f.stop.ID, func(s *domain.Stop) error {
		s.Notes = "local"
		return nil
	})
	require.NoError(t, err)

	res := f.g.ApplyRemote(domain.Transaction{
		Token:  7,
		Author: "other-device",
		Changes: []domain.Change{{
			Ref:    f.stop.Ref(),
			Op:     domain.OpUpdate,
			Fields: domain.Fields{"notes": rawJSON(t, "remote")},
		}},
	})
	assert.Len(t, res.Applied, 1)
	assert.Empty(t, res.Rejected)

	got, err := graph.Get[domain.Stop](f.g, f.stop.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Notes)
	assert.Equal(t, "Louvre", got.Name, "untouched properties keep their value")

	// The overwritten local value must not be pushed on the next save.
	for _, c := range f.g.TakePending() {
		assert.NotContains(t, c.Fields, "notes")
	}
}

func TestApplyRemote_LocalEditToOtherFieldSurvives(t *testing.T) {
	f := newFixture(t)
	_, err := graph.Update(f.g, f.stop.ID, func(s *domain.Stop) error {
		s.Name = "Musée du Louvre"
		return nil
	})
	require.NoError(t, err)

	f.g.ApplyRemote(domain.Transaction{Changes: []domain.Change{{
		Ref:    f.stop.Ref(),
		Op:     domain.OpUpdate,
		Fields: domain.Fields{"notes": rawJSON(t, "remote")},
	}}})

	got, err := graph.Get[domain.Stop](f.g, f.stop.ID)
	require.NoError(t, err)
	assert.Equal(t, "Musée du Louvre", got.Name)
	assert.Equal(t, "remote", got.Notes)
	changes := f.g.TakePending()
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0].Fields, "name")
}

func TestApplyRemote_InsertAndDelete(t *testing.T) {
	f := newFixture(t)
	link := domain.Link{ID: uuid.New(), StopID: f.stop.ID, Title: "tickets", URL: "https://example.com"}

	res := f.g.ApplyRemote(
		domain.Transaction{Token: 1, Changes: []domain.Change{{
			Ref: link.Ref(), Op: domain.OpInsert, Store: "private", Record: rawJSON(t, link),
		}}},
		domain.Transaction{Token: 2, Changes: []domain.Change{{
			Ref: f.day.Ref(), Op: domain.OpDelete,
		}}},
	)

	assert.Len(t, res.Applied, 2)
	_, ok := f.g.Lookup(link.Ref())
	assert.False(t, ok, "link was deleted with its day")
	_, ok = f.g.Lookup(f.trip.Ref())
	assert.True(t, ok)
	assert.False(t, f.g.HasPending(), "remote changes never queue local saves")
}

func TestApplyRemote_UpdateForUnknownRecordIsSkipped(t *testing.T) {
	g := graph.New("private")

	res := g.ApplyRemote(domain.Transaction{Changes: []domain.Change{{
		Ref:    domain.Ref{Kind: domain.KindStop, ID: uuid.New()},
		Op:     domain.OpUpdate,
		Fields: domain.Fields{"notes": rawJSON(t, "x")},
	}}})

	assert.Equal(t, 1, res.Skipped)
}

func TestApplyRemote_UndecodableChangeIsRejectedAndBatchContinues(t *testing.T) {
	f := newFixture(t)
	link := domain.Link{ID: uuid.New(), StopID: f.stop.ID, Title: "tickets", URL: "https://example.com"}
	broken := domain.Link{ID: uuid.New(), StopID: f.stop.ID}

	res := f.g.ApplyRemote(
		domain.Transaction{Token: 3, Changes: []domain.Change{{
			Ref: broken.Ref(), Op: domain.OpInsert, Record: []byte(`{broken`),
		}}},
		domain.Transaction{Token: 4, Changes: []domain.Change{{
			Ref: link.Ref(), Op: domain.OpInsert, Record: rawJSON(t, link),
		}}},
	)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, int64(3), res.Rejected[0].Token)
	assert.Error(t, res.Rejected[0].Err)
	assert.Len(t, res.Applied, 1)
	_, ok := f.g.Lookup(broken.Ref())
	assert.False(t, ok)
	_, ok = f.g.Lookup(link.Ref())
	assert.True(t, ok)
}

// ---- Relocate --------------------------------------------------------------

func TestRelocate_MovesWholeSubtree(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.g.Relocate(f.trip.ID, "shared"))

	for _, ref := range f.g.Subtree(f.trip.Ref()) {
		store, _ := f.g.StoreOf(ref)
		assert.Equal(t, "shared", store, ref.String())
	}
	assert.Len(t, f.g.TakePending(), 4)
}
