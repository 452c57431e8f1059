// Package worker repairs drift between the cached credit/debit counters and
// the fold over the event list. The counters exist for read-speed and for
// the atomic-increment append; the fold stays the source of truth.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// ReconcileStore is the slice of the store the worker needs. Both the
// memory store and the SQLite repository satisfy it.
//
// ReconcileTotals must fold, compare and repair atomically: an append
// landing between a separate fold and write would have its increment
// overwritten by the stale fold.
type ReconcileStore interface {
	EntityIDs(ctx context.Context) ([]string, error)
	ReconcileTotals(ctx context.Context, entityID string) (core.ReconcileResult, error)
}

type ReconcileWorker struct {
	store ReconcileStore
}

func NewReconcileWorker(st ReconcileStore) *ReconcileWorker {
	return &ReconcileWorker{store: st}
}

// HandleSyncMessage reconciles the entity named by one AMQP sync message.
// Entities deleted between publish and delivery are skipped, not retried.
func (w *ReconcileWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntitySyncMessage) error {
	err := w.Reconcile(ctx, msg.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "Entity gone before reconcile, skipping",
			"entity_id", msg.EntityID)
		return nil
	}
	return err
}

// Reconcile folds the entity's ledger and repairs the cached counters if
// they disagree.
func (w *ReconcileWorker) Reconcile(ctx context.Context, entityID string) error {
	res, err := w.store.ReconcileTotals(ctx, entityID)
	if err != nil {
		return fmt.Errorf("reconcile totals: %w", err)
	}

	if res.Repaired {
		slog.WarnContext(ctx, "Totals drift detected, repaired",
			"entity_id", entityID,
			"cached_credit", res.Cached.CreditCents,
			"cached_debit", res.Cached.DebitCents,
			"fold_credit", res.Fold.CreditCents,
			"fold_debit", res.Fold.DebitCents)
	}
	return nil
}

// Sweep reconciles every entity. Run periodically to catch entities whose
// sync message was lost.
func (w *ReconcileWorker) Sweep(ctx context.Context) error {
	ids, err := w.store.EntityIDs(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}

	var failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.Reconcile(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "Sweep reconcile failed", "entity_id", id, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("sweep: %d of %d entities failed", failed, len(ids))
	}

	slog.DebugContext(ctx, "Sweep complete", "entities", len(ids))
	return nil
}
