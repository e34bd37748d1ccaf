package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/repo"
	"github.com/pkordes/tripwit/testutil"
)

func TestCursorStore_LoadDefaultsToZero(t *testing.T) {
	c := repo.NewCursorStore(testutil.NewTx(t))

	token, err := c.Load(context.Background(), "device-new")
	require.NoError(t, err)
	assert.Equal(t, int64(0), token)
}

func TestCursorStore_SaveNeverMovesBackwards(t *testing.T) {
	c := repo.NewCursorStore(testutil.NewTx(t))
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "device-a", 12))
	require.NoError(t, c.Save(ctx, "device-a", 7))

	token, err := c.Load(ctx, "device-a")
	require.NoError(t, err)
	assert.Equal(t, int64(12), token)

	require.NoError(t, c.Save(ctx, "device-a", 20))
	token, err = c.Load(ctx, "device-a")
	require.NoError(t, err)
	assert.Equal(t, int64(20), token)
}

func newShare(t *testing.T, s *repo.ShareStore, owner string) domain.Share {
	t.Helper()
	share := domain.Share{TripID: uuid.New(), OwnerID: owner, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateShare(context.Background(), share))
	return share
}

func TestShareStore_InviteAndAccept(t *testing.T) {
	s := repo.NewShareStore(testutil.NewTx(t))
	ctx := context.Background()

	share := newShare(t, s, "alice")
	inv := domain.Invitation{Token: uuid.New(), TripID: share.TripID, OwnerID: "alice", Permission: domain.PermissionReadWrite}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	got, err := s.Invitation(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	accepted, err := s.AcceptInvitation(ctx, inv.Token, "bob")
	require.NoError(t, err)
	assert.Equal(t, share.TripID, accepted.TripID)
	assert.Equal(t, "alice", accepted.OwnerID)
	require.Len(t, accepted.Participants, 1)
	assert.Equal(t, domain.Participant{
		UserID: "bob", Role: domain.RoleParticipant, Permission: domain.PermissionReadWrite, Accepted: true,
	}, accepted.Participants[0])

	again, err := s.AcceptInvitation(ctx, inv.Token, "bob")
	require.NoError(t, err, "accepting twice as the same user is a no-op")
	assert.Len(t, again.Participants, 1)
}

func TestShareStore_AcceptInvitation_Errors(t *testing.T) {
	s := repo.NewShareStore(testutil.NewTx(t))
	ctx := context.Background()

	share := newShare(t, s, "alice")
	inv := domain.Invitation{Token: uuid.New(), TripID: share.TripID, OwnerID: "alice", Permission: domain.PermissionReadOnly}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	_, err := s.AcceptInvitation(ctx, uuid.New(), "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.AcceptInvitation(ctx, inv.Token, "alice")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.AcceptInvitation(ctx, inv.Token, "bob")
	require.NoError(t, err)
	_, err = s.AcceptInvitation(ctx, inv.Token, "carol")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestShareStore_CreateInvitation_RequiresShare(t *testing.T) {
	s := repo.NewShareStore(testutil.NewTx(t))

	err := s.CreateInvitation(context.Background(), domain.Invitation{
		Token: uuid.New(), TripID: uuid.New(), OwnerID: "alice", Permission: domain.PermissionReadOnly,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareStore_SharesFor(t *testing.T) {
	s := repo.NewShareStore(testutil.NewTx(t))
	ctx := context.Background()

	owned := newShare(t, s, "alice")
	joined := newShare(t, s, "bob")
	newShare(t, s, "carol")

	inv := domain.Invitation{Token: uuid.New(), TripID: joined.TripID, OwnerID: "bob", Permission: domain.PermissionReadOnly}
	require.NoError(t, s.CreateInvitation(ctx, inv))
	_, err := s.AcceptInvitation(ctx, inv.Token, "alice")
	require.NoError(t, err)

	shares, err := s.SharesFor(ctx, "alice")
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(shares))
	for _, sh := range shares {
		ids = append(ids, sh.TripID)
	}
	assert.ElementsMatch(t, []uuid.UUID{owned.TripID, joined.TripID}, ids)

	for _, sh := range shares {
		p, ok := sh.ParticipantFor("alice")
		require.True(t, ok)
		assert.True(t, p.Accepted)
		if sh.TripID == joined.TripID {
			assert.Equal(t, domain.PermissionReadOnly, p.Permission)
		}
	}
}

func TestShareStore_Share_NotFound(t *testing.T) {
	s := repo.NewShareStore(testutil.NewTx(t))

	_, err := s.Share(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
