package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/tripwit/internal/domain"
)

// HistoryStore is the replicated change log. Commit applies a transaction to
// the records table and appends it to history atomically, so the current
// state and the log never disagree.
type HistoryStore struct {
	db db
}

// NewHistoryStore constructs a HistoryStore backed by the provided db connection.
func NewHistoryStore(db db) *HistoryStore {
	return &HistoryStore{db: db}
}

// Commit stores tx and returns the history token assigned to it.
func (s *HistoryStore) Commit(ctx context.Context, tx domain.Transaction) (int64, error) {
	const q = `
		INSERT INTO history (author, created_at, changes)
		VALUES (@author, @created_at, @changes)
		RETURNING token`

	changes, err := json.Marshal(tx.Changes)
	if err != nil {
		return 0, fmt.Errorf("repo.HistoryStore.Commit: encode: %w", err)
	}

	var token int64
	err = pgx.BeginFunc(ctx, s.db, func(dbtx pgx.Tx) error {
		for i, ch := range tx.Changes {
			if err := applyChange(ctx, dbtx, ch); err != nil {
				return fmt.Errorf("change %d (%s %s): %w", i, ch.Op, ch.Ref, err)
			}
		}
		args := pgx.NamedArgs{
			"author":     tx.Author,
			"created_at": tx.CreatedAt,
			"changes":    changes,
		}
		return dbtx.QueryRow(ctx, q, args).Scan(&token)
	})
	if err != nil {
		return 0, fmt.Errorf("repo.HistoryStore.Commit: %w", err)
	}
	return token, nil
}

// FetchSince returns the transactions with a token greater than after, in
// token order.
func (s *HistoryStore) FetchSince(ctx context.Context, after int64) ([]domain.Transaction, error) {
	const q = `
		SELECT token, author, created_at, changes
		FROM history
		WHERE token > @after
		ORDER BY token`

	rows, err := s.db.Query(ctx, q, pgx.NamedArgs{"after": after})
	if err != nil {
		return nil, fmt.Errorf("repo.HistoryStore.FetchSince: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.HistoryStore.FetchSince: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.HistoryStore.FetchSince: rows: %w", err)
	}
	return txs, nil
}

// PurgeBefore deletes transactions created before cutoff and returns how
// many were removed.
func (s *HistoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM history WHERE created_at < @cutoff`

	tag, err := s.db.Exec(ctx, q, pgx.NamedArgs{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("repo.HistoryStore.PurgeBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		tx      domain.Transaction
		changes []byte
	)
	if err := s.Scan(&tx.Token, &tx.Author, &tx.CreatedAt, &changes); err != nil {
		return domain.Transaction{}, err
	}
	if err := json.Unmarshal(changes, &tx.Changes); err != nil {
		return domain.Transaction{}, fmt.Errorf("decode changes: %w", err)
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}
