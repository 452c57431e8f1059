// Package ledger exposes the contribution ledger operations over the store
// port: append, aggregate queries, chronological retrieval and owner-gated
// removal of the whole entity.
package ledger

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Service struct {
	store store.EntityStore
}

func NewService(st store.EntityStore) *Service {
	return &Service{store: st}
}

// Append validates and persists one ledger event. Persistence failures
// propagate; the in-memory view is never updated ahead of the durable copy.
func (s *Service) Append(ctx context.Context, entityID string, ev core.ContributionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := s.store.AppendContribution(ctx, entityID, ev); err != nil {
		return fmt.Errorf("append contribution: %w", err)
	}
	return nil
}

// TotalsByKind returns the aggregate credit and debit sums in the entity's
// home currency, served from the atomically maintained counters.
func (s *Service) TotalsByKind(ctx context.Context, entityID string) (core.Totals, error) {
	return s.store.Totals(ctx, entityID)
}

// RecentEvents returns the most recent events in reverse-chronological
// order. A non-positive limit returns the full ledger. Each call re-reads
// current state; this is a restartable query, not a live stream.
func (s *Service) RecentEvents(ctx context.Context, entityID string, limit int) ([]core.ContributionEvent, error) {
	return s.store.RecentEvents(ctx, entityID, limit)
}

// TotalsByActor folds the ledger into per-participant credit and debit sums,
// the "who contributed what" breakdown of a shared entity.
func (s *Service) TotalsByActor(ctx context.Context, entityID string) (map[string]core.Totals, error) {
	events, err := s.store.RecentEvents(ctx, entityID, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Totals)
	for _, ev := range events {
		t := out[ev.ActorID]
		switch ev.Kind {
		case core.Credit:
			t.CreditCents += ev.ConvertedCents
		case core.Debit:
			t.DebitCents += ev.ConvertedCents
		}
		out[ev.ActorID] = t
	}
	return out, nil
}

// Remove deletes the entity and its embedded ledger. Owner-only.
func (s *Service) Remove(ctx context.Context, entityID, actorID string) error {
	e, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if !e.IsOwner(actorID) {
		return core.ErrNotOwner
	}
	if err := s.store.DeleteEntity(ctx, entityID); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}
