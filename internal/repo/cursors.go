package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CursorStore persists how far each device has read the history.
type CursorStore struct {
	db db
}

// NewCursorStore constructs a CursorStore backed by the provided db connection.
func NewCursorStore(db db) *CursorStore {
	return &CursorStore{db: db}
}

// Load returns the device's cursor, or 0 when it has never saved one.
func (s *CursorStore) Load(ctx context.Context, device string) (int64, error) {
	const q = `SELECT token FROM cursors WHERE device_id = @device`

	var token int64
	err := s.db.QueryRow(ctx, q, pgx.NamedArgs{"device": device}).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repo.CursorStore.Load: %w", err)
	}
	return token, nil
}

// Save records token as the device's cursor. A cursor never moves backwards.
func (s *CursorStore) Save(ctx context.Context, device string, token int64) error {
	const q = `
		INSERT INTO cursors (device_id, token)
		VALUES (@device, @token)
		ON CONFLICT (device_id) DO UPDATE
		SET token      = GREATEST(cursors.token, EXCLUDED.token),
		    updated_at = now()`

	if _, err := s.db.Exec(ctx, q, pgx.NamedArgs{"device": device, "token": token}); err != nil {
		return fmt.Errorf("repo.CursorStore.Save: %w", err)
	}
	return nil
}
