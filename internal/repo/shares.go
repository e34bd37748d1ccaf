package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripwit/internal/domain"
)

// ShareStore manages share grants, their participants and invitations.
type ShareStore struct {
	db db
}

// NewShareStore constructs a ShareStore backed by the provided db connection.
func NewShareStore(db db) *ShareStore {
	return &ShareStore{db: db}
}

// CreateShare inserts a grant and its participants. Sharing an already
// shared trip keeps the existing grant.
func (s *ShareStore) CreateShare(ctx context.Context, share domain.Share) error {
	const q = `
		INSERT INTO shares (trip_id, owner_id, created_at)
		VALUES (@trip_id, @owner_id, @created_at)
		ON CONFLICT (trip_id) DO NOTHING`

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		args := pgx.NamedArgs{
			"trip_id":    share.TripID,
			"owner_id":   share.OwnerID,
			"created_at": share.CreatedAt,
		}
		if _, err := tx.Exec(ctx, q, args); err != nil {
			return err
		}
		for _, p := range share.Participants {
			if err := upsertParticipant(ctx, tx, share.TripID, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("repo.ShareStore.CreateShare: %w", err)
	}
	return nil
}

// CreateInvitation stores an unaccepted invitation for an existing grant.
// Returns domain.ErrNotFound if the trip is not shared.
func (s *ShareStore) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	const q = `
		INSERT INTO invitations (token, trip_id, owner_id, permission)
		SELECT @token, trip_id, @owner_id, @permission
		FROM shares
		WHERE trip_id = @trip_id`

	args := pgx.NamedArgs{
		"token":      inv.Token,
		"trip_id":    inv.TripID,
		"owner_id":   inv.OwnerID,
		"permission": string(inv.Permission),
	}
	tag, err := s.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.ShareStore.CreateInvitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ShareStore.CreateInvitation: share %s: %w", inv.TripID, domain.ErrNotFound)
	}
	return nil
}

// Invitation returns the invitation with the given token.
func (s *ShareStore) Invitation(ctx context.Context, token uuid.UUID) (domain.Invitation, error) {
	const q = `
		SELECT token, trip_id, owner_id, permission, accepted_by
		FROM invitations
		WHERE token = @token`

	inv, _, err := scanInvitation(s.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token}))
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("repo.ShareStore.Invitation: %w", err)
	}
	return inv, nil
}

// AcceptInvitation adds userID as an accepted participant of the grant the
// invitation belongs to and returns the updated grant. An invitation can be
// used by one user only; accepting it again as that user is a no-op.
func (s *ShareStore) AcceptInvitation(ctx context.Context, token uuid.UUID, userID string) (domain.Share, error) {
	const (
		lockQ = `
			SELECT token, trip_id, owner_id, permission, accepted_by
			FROM invitations
			WHERE token = @token
			FOR UPDATE`
		markQ = `
			UPDATE invitations
			SET accepted_by = @user_id, accepted_at = now()
			WHERE token = @token AND accepted_by IS NULL`
	)

	var share domain.Share
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		inv, acceptedBy, err := scanInvitation(tx.QueryRow(ctx, lockQ, pgx.NamedArgs{"token": token}))
		if err != nil {
			return err
		}
		if acceptedBy != "" && acceptedBy != userID {
			return fmt.Errorf("invitation %s already used: %w", token, domain.ErrConflict)
		}
		if inv.OwnerID == userID {
			return fmt.Errorf("owner cannot accept own invitation: %w", domain.ErrConflict)
		}
		p := domain.Participant{
			UserID:     userID,
			Role:       domain.RoleParticipant,
			Permission: inv.Permission,
			Accepted:   true,
		}
		if err := upsertParticipant(ctx, tx, inv.TripID, p); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, markQ, pgx.NamedArgs{"token": token, "user_id": userID}); err != nil {
			return err
		}
		share, err = loadShare(ctx, tx, inv.TripID)
		return err
	})
	if err != nil {
		return domain.Share{}, fmt.Errorf("repo.ShareStore.AcceptInvitation: %w", err)
	}
	return share, nil
}

// Share returns the grant for tripID.
func (s *ShareStore) Share(ctx context.Context, tripID uuid.UUID) (domain.Share, error) {
	share, err := loadShare(ctx, s.db, tripID)
	if err != nil {
		return domain.Share{}, fmt.Errorf("repo.ShareStore.Share: %w", err)
	}
	return share, nil
}

// SharesFor lists the grants userID owns or participates in, ordered by
// creation time.
func (s *ShareStore) SharesFor(ctx context.Context, userID string) ([]domain.Share, error) {
	const q = `
		SELECT s.trip_id, s.owner_id, s.created_at
		FROM shares s
		WHERE s.owner_id = @user_id
		   OR EXISTS (
		       SELECT 1 FROM share_participants p
		       WHERE p.trip_id = s.trip_id AND p.user_id = @user_id)
		ORDER BY s.created_at, s.trip_id`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.ShareStore.SharesFor: %w", err)
	}
	var shares []domain.Share
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("repo.ShareStore.SharesFor: scan: %w", err)
		}
		shares = append(shares, sh)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ShareStore.SharesFor: rows: %w", err)
	}

	// Participants are loaded after the grant rows are drained; a pgx.Tx
	// cannot run a second query while rows are open.
	for i := range shares {
		ps, err := loadParticipants(ctx, s.db, shares[i].TripID)
		if err != nil {
			return nil, fmt.Errorf("repo.ShareStore.SharesFor: %w", err)
		}
		shares[i].Participants = ps
	}
	return shares, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadShare(ctx context.Context, q querier, tripID uuid.UUID) (domain.Share, error) {
	const shareQ = `
		SELECT trip_id, owner_id, created_at
		FROM shares
		WHERE trip_id = @trip_id`

	share, err := scanShare(q.QueryRow(ctx, shareQ, pgx.NamedArgs{"trip_id": tripID}))
	if err != nil {
		return domain.Share{}, err
	}
	share.Participants, err = loadParticipants(ctx, q, tripID)
	if err != nil {
		return domain.Share{}, err
	}
	return share, nil
}

func loadParticipants(ctx context.Context, q querier, tripID uuid.UUID) ([]domain.Participant, error) {
	const participantsQ = `
		SELECT user_id, permission, accepted
		FROM share_participants
		WHERE trip_id = @trip_id
		ORDER BY user_id`

	rows, err := q.Query(ctx, participantsQ, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			p    domain.Participant
			perm string
		)
		if err := rows.Scan(&p.UserID, &perm, &p.Accepted); err != nil {
			return nil, fmt.Errorf("participants: scan: %w", err)
		}
		p.Role = domain.RoleParticipant
		p.Permission = domain.Permission(perm)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participants: rows: %w", err)
	}
	return out, nil
}

func upsertParticipant(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, p domain.Participant) error {
	const q = `
		INSERT INTO share_participants (trip_id, user_id, permission, accepted)
		VALUES (@trip_id, @user_id, @permission, @accepted)
		ON CONFLICT (trip_id, user_id) DO UPDATE
		SET permission = EXCLUDED.permission,
		    accepted   = share_participants.accepted OR EXCLUDED.accepted`

	args := pgx.NamedArgs{
		"trip_id":    tripID,
		"user_id":    p.UserID,
		"permission": string(p.Permission),
		"accepted":   p.Accepted,
	}
	if _, err := tx.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("participant %s: %w", p.UserID, err)
	}
	return nil
}

func scanShare(s scanner) (domain.Share, error) {
	var (
		sh domain.Share
		id pgtype.UUID
	)
	if err := s.Scan(&id, &sh.OwnerID, &sh.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Share{}, domain.ErrNotFound
		}
		return domain.Share{}, err
	}
	sh.TripID = uuid.UUID(id.Bytes)
	sh.CreatedAt = sh.CreatedAt.UTC()
	return sh, nil
}

// scanInvitation maps an invitation row and returns who accepted it, if
// anyone.
func scanInvitation(row pgx.Row) (domain.Invitation, string, error) {
	var (
		inv        domain.Invitation
		token, tid pgtype.UUID
		perm       string
		acceptedBy pgtype.Text
	)
	if err := row.Scan(&token, &tid, &inv.OwnerID, &perm, &acceptedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invitation{}, "", domain.ErrNotFound
		}
		return domain.Invitation{}, "", err
	}
	inv.Token = uuid.UUID(token.Bytes)
	inv.TripID = uuid.UUID(tid.Bytes)
	inv.Permission = domain.Permission(perm)
	return inv, acceptedBy.String, nil
}
