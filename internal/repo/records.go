// Package repo contains all database access logic for Tripwit.
// Records are stored as JSON documents keyed by kind and ID; the history
// table is the replicated change log. No business logic lives here, only
// SQL and type mapping.
package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/tripwit/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test. Begin on a
// pgx.Tx opens a savepoint, so multi-statement writes nest cleanly.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// RecordStore reads the current state of records, bypassing history.
// It is the snapshot source used to seed the graph at startup and when a
// shared trip is imported.
type RecordStore struct {
	db db
}

// NewRecordStore constructs a RecordStore backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRecordStore(db db) *RecordStore {
	return &RecordStore{db: db}
}

// LoadStore returns every record held in store.
func (s *RecordStore) LoadStore(ctx context.Context, store string) ([]domain.Record, error) {
	const q = `
		SELECT kind, data
		FROM records
		WHERE store = @store
		ORDER BY kind, id`

	recs, err := s.query(ctx, q, pgx.NamedArgs{"store": store})
	if err != nil {
		return nil, fmt.Errorf("repo.RecordStore.LoadStore: %w", err)
	}
	return recs, nil
}

// LoadTrip returns the trip and all of its descendants held in store. An
// empty result means the store does not hold the trip (yet).
func (s *RecordStore) LoadTrip(ctx context.Context, store string, tripID uuid.UUID) ([]domain.Record, error) {
	const q = `
		SELECT kind, data
		FROM records
		WHERE store = @store AND trip_id = @trip_id
		ORDER BY kind, id`

	recs, err := s.query(ctx, q, pgx.NamedArgs{"store": store, "trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.RecordStore.LoadTrip: %w", err)
	}
	return recs, nil
}

func (s *RecordStore) query(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Record, error) {
	rows, err := s.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return recs, nil
}

// scanRecord maps a (kind, data) row into a typed domain record.
func scanRecord(s scanner) (domain.Record, error) {
	var (
		kind string
		data []byte
	)
	if err := s.Scan(&kind, &data); err != nil {
		return nil, err
	}
	return domain.DecodeRecord(domain.Kind(kind), data)
}

// applyChange writes one history change to the records table.
func applyChange(ctx context.Context, tx pgx.Tx, ch domain.Change) error {
	switch ch.Op {
	case domain.OpInsert:
		const q = `
			INSERT INTO records (kind, id, store, trip_id, parent_kind, parent_id, data)
			VALUES (@kind, @id, @store, @trip_id, @parent_kind, @parent_id, @data)
			ON CONFLICT (kind, id) DO UPDATE
			SET store       = EXCLUDED.store,
			    trip_id     = EXCLUDED.trip_id,
			    parent_kind = EXCLUDED.parent_kind,
			    parent_id   = EXCLUDED.parent_id,
			    data        = EXCLUDED.data,
			    updated_at  = now()`

		args := changeArgs(ch)
		args["data"] = []byte(ch.Record)
		_, err := tx.Exec(ctx, q, args)
		return err

	case domain.OpUpdate:
		// Fields overwrite top-level properties; absent properties are kept.
		const q = `
			UPDATE records
			SET data        = data || @fields::jsonb,
			    store       = @store,
			    trip_id     = @trip_id,
			    parent_kind = COALESCE(@parent_kind, parent_kind),
			    parent_id   = COALESCE(@parent_id, parent_id),
			    updated_at  = now()
			WHERE kind = @kind AND id = @id`

		fields := []byte("{}")
		if len(ch.Fields) > 0 {
			var err error
			if fields, err = json.Marshal(ch.Fields); err != nil {
				return fmt.Errorf("encode fields: %w", err)
			}
		}
		args := changeArgs(ch)
		args["fields"] = fields
		// An update to a record another device deleted is dropped.
		_, err := tx.Exec(ctx, q, args)
		return err

	case domain.OpDelete:
		const q = `DELETE FROM records WHERE kind = @kind AND id = @id`
		_, err := tx.Exec(ctx, q, pgx.NamedArgs{"kind": string(ch.Ref.Kind), "id": ch.Ref.ID})
		return err
	}
	return fmt.Errorf("unknown op %q", ch.Op)
}

func changeArgs(ch domain.Change) pgx.NamedArgs {
	args := pgx.NamedArgs{
		"kind":        string(ch.Ref.Kind),
		"id":          ch.Ref.ID,
		"store":       ch.Store,
		"trip_id":     nullUUID(ch.TripID),
		"parent_kind": nil,
		"parent_id":   nil,
	}
	if ch.Parent != nil {
		args["parent_kind"] = string(ch.Parent.Kind)
		args["parent_id"] = ch.Parent.ID
	}
	return args
}

// nullUUID maps uuid.Nil to SQL NULL.
func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
