// Package memory is the in-memory store used for tests and the default
// single-process backend. All mutations run under one mutex, which makes
// AppendContribution trivially lost-update-free.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Store struct {
	mu       sync.Mutex
	entities map[string]*core.Entity
	invites  map[string]core.Invitation // keyed by id
}

func New() *Store {
	return &Store{
		entities: make(map[string]*core.Entity),
		invites:  make(map[string]core.Invitation),
	}
}

func (s *Store) CreateEntity(_ context.Context, e core.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

func (s *Store) GetEntity(_ context.Context, id string) (core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return core.Entity{}, store.ErrNotFound
	}
	return *cloneEntity(*e), nil
}

func (s *Store) ListEntitiesByParticipant(_ context.Context, userID string) ([]core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entity
	for _, e := range s.entities {
		if e.IsParticipant(userID) {
			out = append(out, *cloneEntity(*e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AppendContribution(_ context.Context, entityID string, ev core.ContributionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return store.ErrNotFound
	}
	e.Events = append(e.Events, ev)
	switch ev.Kind {
	case core.Credit:
		e.CreditCents += ev.ConvertedCents
	case core.Debit:
		e.DebitCents += ev.ConvertedCents
	}
	return nil
}

func (s *Store) Totals(_ context.Context, entityID string) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return core.Totals{}, store.ErrNotFound
	}
	return core.Totals{CreditCents: e.CreditCents, DebitCents: e.DebitCents}, nil
}

func (s *Store) RecentEvents(_ context.Context, entityID string, limit int) ([]core.ContributionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, store.ErrNotFound
	}
	events := append([]core.ContributionEvent(nil), e.Events...)
	// Reverse-chronological, ties broken by insertion order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

func (s *Store) UpdateTarget(_ context.Context, entityID string, targetCents int64) error {
	if targetCents < 0 {
		return core.ErrNegativeTarget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return store.ErrNotFound
	}
	e.TargetCents = targetCents
	return nil
}

func (s *Store) AddParticipant(_ context.Context, entityID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return store.ErrNotFound
	}
	if !e.IsParticipant(userID) {
		e.Participants = append(e.Participants, userID)
	}
	return nil
}

func (s *Store) DeleteEntity(_ context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entityID]; !ok {
		return store.ErrNotFound
	}
	delete(s.entities, entityID)
	for id, inv := range s.invites {
		if inv.EntityID == entityID {
			delete(s.invites, id)
		}
	}
	return nil
}

func (s *Store) CreateInvitation(_ context.Context, inv core.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.ID] = inv
	return nil
}

func (s *Store) GetInvitationByCode(_ context.Context, code string) (core.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if strings.EqualFold(inv.Code, code) {
			return inv, nil
		}
	}
	return core.Invitation{}, store.ErrNotFound
}

func (s *Store) DeleteInvitation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.invites, id)
	return nil
}

// EntityIDs lists every stored entity. Used by the reconcile worker sweep.
func (s *Store) EntityIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// FoldTotals recomputes totals from the event list instead of the cached
// counters. The fold is the source of truth the worker repairs against.
func (s *Store) FoldTotals(_ context.Context, entityID string) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return core.Totals{}, store.ErrNotFound
	}
	var t core.Totals
	for _, ev := range e.Events {
		switch ev.Kind {
		case core.Credit:
			t.CreditCents += ev.ConvertedCents
		case core.Debit:
			t.DebitCents += ev.ConvertedCents
		}
	}
	return t, nil
}

// ReconcileTotals folds the event list and repairs the cached counters when
// they disagree, all under the store mutex so no append can land between the
// fold and the repair.
func (s *Store) ReconcileTotals(_ context.Context, entityID string) (core.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return core.ReconcileResult{}, store.ErrNotFound
	}

	res := core.ReconcileResult{
		Cached: core.Totals{CreditCents: e.CreditCents, DebitCents: e.DebitCents},
	}
	for _, ev := range e.Events {
		switch ev.Kind {
		case core.Credit:
			res.Fold.CreditCents += ev.ConvertedCents
		case core.Debit:
			res.Fold.DebitCents += ev.ConvertedCents
		}
	}
	if res.Fold != res.Cached {
		e.CreditCents = res.Fold.CreditCents
		e.DebitCents = res.Fold.DebitCents
		res.Repaired = true
	}
	return res, nil
}

// SetTotals overwrites the cached counters. Test hook for simulating counter
// drift; production repairs go through ReconcileTotals.
func (s *Store) SetTotals(_ context.Context, entityID string, t core.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return store.ErrNotFound
	}
	e.CreditCents = t.CreditCents
	e.DebitCents = t.DebitCents
	return nil
}

// Seed loads entities wholesale, replacing anything already stored. Used to
// restore a disk snapshot at startup.
func (s *Store) Seed(entities []core.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[string]*core.Entity, len(entities))
	for _, e := range entities {
		s.entities[e.ID] = cloneEntity(e)
	}
}

// AllEntities returns every stored entity, for snapshotting to disk.
func (s *Store) AllEntities() []core.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *cloneEntity(*e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneEntity(e core.Entity) *core.Entity {
	c := e
	c.Participants = append([]string(nil), e.Participants...)
	c.Events = append([]core.ContributionEvent(nil), e.Events...)
	return &c
}
