package cloudsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/cloudsync"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// ---- mocks -----------------------------------------------------------------

type mockHistory struct {
	fetchSince  func(ctx context.Context, after int64) ([]domain.Transaction, error)
	purgeBefore func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockHistory) FetchSince(ctx context.Context, after int64) ([]domain.Transaction, error) {
	if m.fetchSince == nil {
		return nil, nil
	}
	return m.fetchSince(ctx, after)
}

func (m *mockHistory) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.purgeBefore == nil {
		return 0, nil
	}
	return m.purgeBefore(ctx, cutoff)
}

var _ cloudsync.History = (*mockHistory)(nil)

// mockCursors keeps cursors in memory.
type mockCursors struct {
	mu      sync.Mutex
	tokens  map[string]int64
	saveErr error
}

func (m *mockCursors) Load(_ context.Context, device string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[device], nil
}

func (m *mockCursors) Save(_ context.Context, device string, token int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.tokens == nil {
		m.tokens = map[string]int64{}
	}
	m.tokens[device] = token
	return nil
}

var _ cloudsync.Cursors = (*mockCursors)(nil)

type mockShares struct {
	createShare      func(ctx context.Context, s domain.Share) error
	createInvitation func(ctx context.Context, inv domain.Invitation) error
	acceptInvitation func(ctx context.Context, token uuid.UUID, userID string) (domain.Share, error)
	sharesFor        func(ctx context.Context, userID string) ([]domain.Share, error)
}

func (m *mockShares) CreateShare(ctx context.Context, s domain.Share) error {
	if m.createShare == nil {
		return nil
	}
	return m.createShare(ctx, s)
}

func (m *mockShares) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	if m.createInvitation == nil {
		return nil
	}
	return m.createInvitation(ctx, inv)
}

func (m *mockShares) AcceptInvitation(ctx context.Context, token uuid.UUID, userID string) (domain.Share, error) {
	return m.acceptInvitation(ctx, token, userID)
}

func (m *mockShares) SharesFor(ctx context.Context, userID string) ([]domain.Share, error) {
	if m.sharesFor == nil {
		return nil, nil
	}
	return m.sharesFor(ctx, userID)
}

var _ cloudsync.Shares = (*mockShares)(nil)

type mockSnapshots struct {
	loadStore func(ctx context.Context, store string) ([]domain.Record, error)
	loadTrip  func(ctx context.Context, store string, tripID uuid.UUID) ([]domain.Record, error)
}

func (m *mockSnapshots) LoadStore(ctx context.Context, store string) ([]domain.Record, error) {
	if m.loadStore == nil {
		return nil, nil
	}
	return m.loadStore(ctx, store)
}

func (m *mockSnapshots) LoadTrip(ctx context.Context, store string, tripID uuid.UUID) ([]domain.Record, error) {
	if m.loadTrip == nil {
		return nil, nil
	}
	return m.loadTrip(ctx, store, tripID)
}

var _ cloudsync.Snapshots = (*mockSnapshots)(nil)

type mockRelocator struct {
	relocateTrip func(ctx context.Context, tripID uuid.UUID, store string) error
	calls        int
}

func (m *mockRelocator) RelocateTrip(ctx context.Context, tripID uuid.UUID, store string) error {
	m.calls++
	return m.relocateTrip(ctx, tripID, store)
}

var _ cloudsync.Relocator = (*mockRelocator)(nil)

type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) Publish(ev domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// ---- helpers ---------------------------------------------------------------

const (
	device      = "device-a"
	user        = "alice"
	privateBase = "private"
	private     = "private:alice"
	shared      = "shared"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	c         *cloudsync.Controller
	g         *graph.Graph
	history   *mockHistory
	cursors   *mockCursors
	shares    *mockShares
	snapshots *mockSnapshots
	events    *recorder
}

func newFixture() *fixture {
	f := &fixture{
		g:         graph.New(private),
		history:   &mockHistory{},
		cursors:   &mockCursors{},
		shares:    &mockShares{},
		snapshots: &mockSnapshots{},
		events:    &recorder{},
	}
	f.c = cloudsync.NewController(f.g, cloudsync.Stores{
		History:   f.history,
		Cursors:   f.cursors,
		Shares:    f.shares,
		Snapshots: f.snapshots,
	}, cloudsync.Config{
		DeviceID:     device,
		UserID:       user,
		PrivateStore: privateBase,
		SharedStore:  shared,
		PollInterval: time.Hour,
		Events:       f.events,
		Now:          func() time.Time { return now },
	})
	return f
}

// tripRecords builds a one-day trip with a single stop.
func tripRecords(name string) (domain.Trip, domain.Stop, []domain.Record) {
	trip := domain.Trip{
		ID: uuid.New(), Name: name, Destination: name, StartDate: now, EndDate: now,
		HasCustomDates: true, Status: domain.TripStatusPlanning,
	}
	day := domain.Day{ID: uuid.New(), TripID: trip.ID, Date: now, DayNumber: 1}
	stop := domain.Stop{ID: uuid.New(), DayID: day.ID, Name: "Louvre", Notes: "morning", Category: domain.CategoryAttraction}
	return trip, stop, []domain.Record{trip, day, stop}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// ---- reconciliation --------------------------------------------------------

func TestReconcile_RemoteValueWinsOverLocalEdit(t *testing.T) {
	f := newFixture()
	trip, stop, recs := tripRecords("Paris")
	f.g.Seed(private, recs...)

	_, err := graph.Update(f.g, stop.ID, func(s *domain.Stop) error {
		s.Name = "Local name"
		s.Notes = "bring cash"
		return nil
	})
	require.NoError(t, err)

	f.history.fetchSince = func(_ context.Context, after int64) ([]domain.Transaction, error) {
		return []domain.Transaction{{
			Token:  5,
			Author: "device-b",
			Changes: []domain.Change{{
				Ref: stop.Ref(), Op: domain.OpUpdate, TripID: trip.ID, Store: private,
				Fields: domain.Fields{"name": raw(t, "Remote name")},
			}},
		}}, nil
	}

	res, err := f.c.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Applied)
	got, err := graph.Get[domain.Stop](f.g, stop.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote name", got.Name)
	assert.Equal(t, "bring cash", got.Notes, "non-conflicting local edits survive")

	pending := f.g.TakePending()
	require.Len(t, pending, 1)
	assert.NotContains(t, pending[0].Fields, "name", "a later save must not resurrect the local value")
	assert.Contains(t, pending[0].Fields, "notes")

	require.Len(t, f.events.events, 1)
	assert.True(t, f.events.events[0].Remote)
	assert.Equal(t, trip.ID, f.events.events[0].TripID)
}

func TestReconcile_SkipsOwnWritesButAdvancesCursor(t *testing.T) {
	f := newFixture()
	trip, _, _ := tripRecords("Paris")
	f.cursors.tokens = map[string]int64{device: 2}
	var gotAfter int64
	f.history.fetchSince = func(_ context.Context, after int64) ([]domain.Transaction, error) {
		gotAfter = after
		return []domain.Transaction{
			{Token: 3, Author: device, Changes: []domain.Change{{Ref: trip.Ref(), Op: domain.OpInsert, TripID: trip.ID, Store: private, Record: raw(t, trip)}}},
			{Token: 4, Author: device},
		}, nil
	}

	res, err := f.c.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), gotAfter)
	assert.Equal(t, 2, res.Own)
	assert.Zero(t, res.Applied)
	assert.Equal(t, int64(4), res.Cursor)
	assert.Equal(t, int64(4), f.cursors.tokens[device])
	assert.Zero(t, f.g.Len(), "own writes are not applied again")
}

func TestReconcile_PurgesHistoryPastRetention(t *testing.T) {
	f := newFixture()
	var cutoff time.Time
	f.history.purgeBefore = func(_ context.Context, c time.Time) (int64, error) {
		cutoff = c
		return 12, nil
	}

	res, err := f.c.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), cutoff)
	assert.Equal(t, int64(12), res.Purged)
}

func TestReconcile_CompactionFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.history.purgeBefore = func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("timeout")
	}

	_, err := f.c.Reconcile(context.Background())

	assert.NoError(t, err)
}

func TestReconcile_UndecodableChangeDoesNotPinCursor(t *testing.T) {
	f := newFixture()
	trip, _, _ := tripRecords("Paris")
	later, _, _ := tripRecords("Rome")
	f.history.fetchSince = func(_ context.Context, after int64) ([]domain.Transaction, error) {
		if after >= 10 {
			return nil, nil
		}
		return []domain.Transaction{
			{Token: 9, Author: "device-b", Changes: []domain.Change{
				{Ref: trip.Ref(), Op: domain.OpInsert, TripID: trip.ID, Store: private, Record: json.RawMessage(`{broken`)},
			}},
			{Token: 10, Author: "device-b", Changes: []domain.Change{
				{Ref: later.Ref(), Op: domain.OpInsert, TripID: later.ID, Store: private, Record: raw(t, later)},
			}},
		}, nil
	}

	res, err := f.c.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, int64(10), f.cursors.tokens[device])
	_, ok := f.g.Lookup(later.Ref())
	assert.True(t, ok, "changes after the bad one still apply")
	require.Len(t, f.events.events, 1)
	assert.Equal(t, later.ID, f.events.events[0].TripID)

	res, err = f.c.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Fetched, "the next pass starts after the bad transaction")
}

func TestReconcile_FetchFailure(t *testing.T) {
	f := newFixture()
	f.history.fetchSince = func(context.Context, int64) ([]domain.Transaction, error) {
		return nil, errors.New("network down")
	}

	_, err := f.c.Reconcile(context.Background())

	assert.ErrorContains(t, err, "network down")
}

func TestReconcile_OnlyJoinedSharedTripsAreApplied(t *testing.T) {
	f := newFixture()
	joined, _, _ := tripRecords("Joined")
	stranger, _, _ := tripRecords("Stranger")
	f.shares.sharesFor = func(context.Context, string) ([]domain.Share, error) {
		return []domain.Share{{TripID: joined.ID, OwnerID: "bob", Participants: []domain.Participant{
			{UserID: user, Role: domain.RoleParticipant, Permission: domain.PermissionReadOnly, Accepted: true},
		}}}, nil
	}
	f.history.fetchSince = func(context.Context, int64) ([]domain.Transaction, error) {
		return []domain.Transaction{{Token: 1, Author: "device-b", Changes: []domain.Change{
			{Ref: joined.Ref(), Op: domain.OpInsert, TripID: joined.ID, Store: shared, Record: raw(t, joined)},
			{Ref: stranger.Ref(), Op: domain.OpInsert, TripID: stranger.ID, Store: shared, Record: raw(t, stranger)},
			{Ref: stranger.Ref(), Op: domain.OpInsert, TripID: stranger.ID, Store: "private-bob", Record: raw(t, stranger)},
		}}}, nil
	}

	res, err := f.c.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Skipped)
	_, ok := f.g.Lookup(joined.Ref())
	assert.True(t, ok)
	assert.True(t, f.c.IsShared(joined.Ref()))
	_, ok = f.g.Lookup(stranger.Ref())
	assert.False(t, ok)
}

func TestReconcile_IgnoresAnotherUsersPrivateRecords(t *testing.T) {
	f := newFixture()
	bobs, _, _ := tripRecords("Bob's trip")
	f.history.fetchSince = func(context.Context, int64) ([]domain.Transaction, error) {
		return []domain.Transaction{{Token: 4, Author: "bob-phone", Changes: []domain.Change{
			{Ref: bobs.Ref(), Op: domain.OpInsert, TripID: bobs.ID, Store: domain.PrivateStore(privateBase, "bob"), Record: raw(t, bobs)},
			{Ref: bobs.Ref(), Op: domain.OpInsert, TripID: bobs.ID, Store: privateBase, Record: raw(t, bobs)},
		}}}, nil
	}

	res, err := f.c.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, int64(4), f.cursors.tokens[device])
	_, ok := f.g.Lookup(bobs.Ref())
	assert.False(t, ok)
}

func TestLoad_ReadsOnlyThisUsersPrivatePartition(t *testing.T) {
	f := newFixture()
	var stores []string
	f.snapshots.loadStore = func(_ context.Context, store string) ([]domain.Record, error) {
		stores = append(stores, store)
		return nil, nil
	}

	require.NoError(t, f.c.Load(context.Background()))

	assert.Equal(t, []string{"private:alice"}, stores)
}

func TestReconcile_IsSerialized(t *testing.T) {
	f := newFixture()
	var inFlight, peak atomic.Int32
	f.history.fetchSince = func(context.Context, int64) ([]domain.Transaction, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.c.Reconcile(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestRun_ReconcilesOnNotification(t *testing.T) {
	f := newFixture()
	passes := make(chan struct{}, 4)
	f.history.fetchSince = func(context.Context, int64) ([]domain.Transaction, error) {
		passes <- struct{}{}
		return nil, nil
	}
	notify := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- f.c.Run(ctx, notify) }()

	<-passes // startup pass
	notify <- struct{}{}
	select {
	case <-passes:
	case <-time.After(time.Second):
		t.Fatal("notification did not trigger a reconcile")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// ---- permissions -----------------------------------------------------------

func TestPermissions(t *testing.T) {
	f := newFixture()
	mine, mineStop, mineRecs := tripRecords("Mine")
	owned, ownedStop, ownedRecs := tripRecords("Owned shared")
	rw, rwStop, rwRecs := tripRecords("Read-write")
	ro, roStop, roRecs := tripRecords("Read-only")

	f.snapshots.loadStore = func(_ context.Context, store string) ([]domain.Record, error) {
		require.Equal(t, private, store)
		return mineRecs, nil
	}
	byTrip := map[uuid.UUID][]domain.Record{owned.ID: ownedRecs, rw.ID: rwRecs, ro.ID: roRecs}
	f.snapshots.loadTrip = func(_ context.Context, store string, id uuid.UUID) ([]domain.Record, error) {
		require.Equal(t, shared, store)
		return byTrip[id], nil
	}
	f.shares.sharesFor = func(context.Context, string) ([]domain.Share, error) {
		return []domain.Share{
			{TripID: owned.ID, OwnerID: user},
			{TripID: rw.ID, OwnerID: "bob", Participants: []domain.Participant{
				{UserID: user, Role: domain.RoleParticipant, Permission: domain.PermissionReadWrite, Accepted: true},
			}},
			{TripID: ro.ID, OwnerID: "bob", Participants: []domain.Participant{
				{UserID: user, Role: domain.RoleParticipant, Permission: domain.PermissionReadOnly, Accepted: true},
			}},
		}, nil
	}
	require.NoError(t, f.c.Load(context.Background()))

	tests := []struct {
		name                         string
		ref                          domain.Ref
		shared, participant, canEdit bool
	}{
		{"unshared trip", mine.Ref(), false, false, true},
		{"unshared stop", mineStop.Ref(), false, false, true},
		{"owner shared trip", owned.Ref(), true, false, true},
		{"owner shared stop", ownedStop.Ref(), true, false, true},
		{"read-write participant stop", rwStop.Ref(), true, true, true},
		{"read-write participant trip", rw.Ref(), true, true, true},
		{"read-only participant stop", roStop.Ref(), true, true, false},
		{"read-only participant trip", ro.Ref(), true, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.shared, f.c.IsShared(tc.ref), "IsShared")
			assert.Equal(t, tc.participant, f.c.IsParticipant(tc.ref), "IsParticipant")
			assert.Equal(t, tc.canEdit, f.c.CanEdit(tc.ref), "CanEdit")
		})
	}

	store, ok := f.c.StoreOf(rwStop.Ref())
	require.True(t, ok)
	assert.Equal(t, shared, store)
}

// ---- share lifecycle -------------------------------------------------------

func TestShareTrip_RelocatesOnceAndInvites(t *testing.T) {
	f := newFixture()
	trip, stop, recs := tripRecords("Paris")
	f.g.Seed(private, recs...)
	relocator := &mockRelocator{relocateTrip: func(_ context.Context, id uuid.UUID, store string) error {
		return f.g.Relocate(id, store)
	}}
	f.c.SetRelocator(relocator)
	var created []domain.Share
	var invited []domain.Invitation
	f.shares.createShare = func(_ context.Context, s domain.Share) error {
		created = append(created, s)
		return nil
	}
	f.shares.createInvitation = func(_ context.Context, inv domain.Invitation) error {
		invited = append(invited, inv)
		return nil
	}

	assert.Equal(t, domain.ShareUnshared, f.c.ShareState(trip.ID))

	inv, err := f.c.ShareTrip(context.Background(), trip.ID, domain.PermissionReadOnly)
	require.NoError(t, err)
	_, err = f.c.ShareTrip(context.Background(), trip.ID, domain.PermissionReadWrite)
	require.NoError(t, err)

	assert.Equal(t, trip.ID, inv.TripID)
	assert.Equal(t, user, inv.OwnerID)
	assert.Equal(t, domain.PermissionReadOnly, inv.Permission)
	assert.Equal(t, 1, relocator.calls)
	require.Len(t, created, 1)
	assert.Equal(t, user, created[0].OwnerID)
	assert.Len(t, invited, 2)
	assert.True(t, f.c.IsShared(stop.Ref()), "the whole subtree moves")
	assert.True(t, f.c.CanEdit(stop.Ref()))
	assert.Equal(t, domain.ShareInvitationSent, f.c.ShareState(trip.ID))
}

func TestShareTrip_Errors(t *testing.T) {
	f := newFixture()

	_, err := f.c.ShareTrip(context.Background(), uuid.New(), domain.PermissionReadOnly)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.c.ShareTrip(context.Background(), uuid.New(), domain.Permission("admin"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAcceptShare_ConcurrentCallsAcceptOnce(t *testing.T) {
	f := newFixture()
	tripID := uuid.New()
	inv := domain.Invitation{Token: uuid.New(), TripID: tripID, OwnerID: "bob", Permission: domain.PermissionReadWrite}
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.shares.acceptInvitation = func(_ context.Context, token uuid.UUID, userID string) (domain.Share, error) {
		calls.Add(1)
		close(entered)
		<-release
		return domain.Share{TripID: tripID, OwnerID: "bob", Participants: []domain.Participant{
			{UserID: userID, Role: domain.RoleParticipant, Permission: domain.PermissionReadWrite, Accepted: true},
		}}, nil
	}

	first := make(chan bool, 1)
	go func() {
		ok, err := f.c.AcceptShare(context.Background(), inv)
		assert.NoError(t, err)
		first <- ok
	}()
	<-entered

	ok, err := f.c.AcceptShare(context.Background(), inv)
	require.NoError(t, err)
	assert.False(t, ok, "second entry point is a no-op")

	close(release)
	assert.True(t, <-first)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAcceptShare_AwaitingImportUntilRecordsArrive(t *testing.T) {
	f := newFixture()
	trip, stop, recs := tripRecords("Rome")
	inv := domain.Invitation{Token: uuid.New(), TripID: trip.ID, OwnerID: "bob", Permission: domain.PermissionReadOnly}
	f.shares.acceptInvitation = func(_ context.Context, _ uuid.UUID, userID string) (domain.Share, error) {
		return domain.Share{TripID: trip.ID, OwnerID: "bob", Participants: []domain.Participant{
			{UserID: userID, Role: domain.RoleParticipant, Permission: domain.PermissionReadOnly, Accepted: true},
		}}, nil
	}
	var available []domain.Record
	f.snapshots.loadTrip = func(context.Context, string, uuid.UUID) ([]domain.Record, error) {
		return available, nil
	}

	f.c.ReceiveInvitation(inv)
	assert.Equal(t, domain.ShareInvitationOpen, f.c.ShareState(trip.ID))

	ok, err := f.c.AcceptShare(context.Background(), inv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ShareAwaitingImport, f.c.ShareState(trip.ID))

	state, err := f.c.PollImport(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShareAwaitingImport, state)

	available = recs
	state, err = f.c.PollImport(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShareSynced, state)
	assert.True(t, f.c.IsParticipant(stop.Ref()))
	assert.False(t, f.c.CanEdit(stop.Ref()))
	assert.False(t, f.g.HasPending(), "imported records are not queued for saving")
}

func TestAcceptShare_StoreFailure(t *testing.T) {
	f := newFixture()
	f.shares.acceptInvitation = func(context.Context, uuid.UUID, string) (domain.Share, error) {
		return domain.Share{}, domain.ErrNotFound
	}

	ok, err := f.c.AcceptShare(context.Background(), domain.Invitation{Token: uuid.New(), TripID: uuid.New()})

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The guard is released after a failure.
	f.shares.acceptInvitation = func(_ context.Context, _ uuid.UUID, _ string) (domain.Share, error) {
		return domain.Share{TripID: uuid.New()}, nil
	}
	ok, err = f.c.AcceptShare(context.Background(), domain.Invitation{Token: uuid.New()})
	require.NoError(t, err)
	assert.True(t, ok)
}
