package cloudsync

import (
	"context"
	"fmt"
	"time"

	"github.com/pkordes/tripwit/internal/domain"
)

// Result summarises one reconciliation pass.
type Result struct {
	Fetched  int
	Own      int
	Applied  int
	Skipped  int
	Rejected int
	Cursor   int64
	Purged   int64
}

// Reconcile merges history written by other devices into the graph.
//
// It fetches every transaction after this device's cursor, drops the ones
// this device authored and changes outside the user's partitions, and
// applies the rest in one batch with the store's values winning. Changes
// that cannot be decoded are logged and passed over. The cursor then
// advances to the last fetched token and history older than the retention
// is purged. Calls are serialized.
func (c *Controller) Reconcile(ctx context.Context) (Result, error) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	cursor, err := c.cursors.Load(ctx, c.device)
	if err != nil {
		return Result{}, fmt.Errorf("cloudsync.Controller.Reconcile: load cursor: %w", err)
	}
	txs, err := c.history.FetchSince(ctx, cursor)
	if err != nil {
		return Result{}, fmt.Errorf("cloudsync.Controller.Reconcile: fetch: %w", err)
	}
	res := Result{Fetched: len(txs), Cursor: cursor}
	if len(txs) == 0 {
		res.Purged = c.compact(ctx)
		return res, nil
	}
	if err := c.refreshGrants(ctx); err != nil {
		return res, fmt.Errorf("cloudsync.Controller.Reconcile: grants: %w", err)
	}

	last := cursor
	remote := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		last = max(last, tx.Token)
		if tx.Author == c.device {
			res.Own++
			continue
		}
		kept := tx
		kept.Changes = nil
		for _, ch := range tx.Changes {
			if c.visible(ch) {
				kept.Changes = append(kept.Changes, ch)
			} else {
				res.Skipped++
			}
		}
		if len(kept.Changes) > 0 {
			remote = append(remote, kept)
		}
	}

	applied := c.graph.ApplyRemote(remote...)
	res.Applied = len(applied.Applied)
	res.Skipped += applied.Skipped
	res.Rejected = len(applied.Rejected)
	for _, r := range applied.Rejected {
		c.log.ErrorContext(ctx, "remote change rejected",
			"token", r.Token,
			"kind", r.Change.Ref.Kind,
			"id", r.Change.Ref.ID,
			"op", r.Change.Op,
			"error", r.Err,
		)
	}

	if last != cursor {
		if err := c.cursors.Save(ctx, c.device, last); err != nil {
			return res, fmt.Errorf("cloudsync.Controller.Reconcile: save cursor: %w", err)
		}
		res.Cursor = last
	}

	at := c.now().UTC()
	for _, ch := range applied.Applied {
		c.events.Publish(domain.ChangeEvent{TripID: ch.TripID, Ref: ch.Ref, Op: ch.Op, Remote: true, At: at})
	}
	res.Purged = c.compact(ctx)

	c.log.InfoContext(ctx, "reconciled",
		"fetched", res.Fetched,
		"own", res.Own,
		"applied", res.Applied,
		"skipped", res.Skipped,
		"rejected", res.Rejected,
		"cursor", res.Cursor,
		"purged", res.Purged,
	)
	return res, nil
}

// compact purges history older than the retention. Failures are logged
// only; the next pass tries again.
func (c *Controller) compact(ctx context.Context) int64 {
	n, err := c.history.PurgeBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.WarnContext(ctx, "history compaction failed", "error", err)
		return 0
	}
	return n
}

// Run reconciles whenever notifications delivers a signal and at least once
// per poll interval, and re-checks trips awaiting import on each tick. It
// returns when ctx is done. A closed notifications channel leaves polling
// in charge.
func (c *Controller) Run(ctx context.Context, notifications <-chan struct{}) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	pass := func() {
		if _, err := c.Reconcile(ctx); err != nil && ctx.Err() == nil {
			c.log.ErrorContext(ctx, "reconcile failed", "error", err)
		}
	}
	pass()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			pass()
		case <-ticker.C:
			pass()
			c.pollImports(ctx)
		}
	}
}
