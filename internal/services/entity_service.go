package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/store"
)

// EntityInput is the raw user input for creating a budget or goal.
type EntityInput struct {
	Title        string
	Kind         core.EntityKind
	HomeCurrency core.CurrencyCode
	Target       string // decimal string; "0" is allowed (no target yet)
}

type EntityService struct {
	entities store.EntityStore
	ledger   *ledger.Service
}

func NewEntityService(entities store.EntityStore, lg *ledger.Service) *EntityService {
	return &EntityService{entities: entities, ledger: lg}
}

// Create makes a new funding entity owned by ownerID, with the owner as the
// sole initial participant. The home currency is fixed here for good.
func (s *EntityService) Create(ctx context.Context, ownerID string, in EntityInput) (core.Entity, error) {
	targetCents, err := parseTarget(in.Target)
	if err != nil {
		return core.Entity{}, err
	}

	e := core.Entity{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Kind:         in.Kind,
		HomeCurrency: in.HomeCurrency,
		TargetCents:  targetCents,
		OwnerID:      ownerID,
		Participants: []string{ownerID},
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.Entity{}, err
	}

	if err := s.entities.CreateEntity(ctx, e); err != nil {
		return core.Entity{}, fmt.Errorf("create entity: %w", err)
	}

	slog.InfoContext(ctx, "Funding entity created",
		"id", e.ID,
		"kind", e.Kind,
		"home_currency", e.HomeCurrency)

	return e, nil
}

func (s *EntityService) Get(ctx context.Context, entityID string) (core.Entity, error) {
	return s.entities.GetEntity(ctx, entityID)
}

func (s *EntityService) ListForUser(ctx context.Context, userID string) ([]core.Entity, error) {
	return s.entities.ListEntitiesByParticipant(ctx, userID)
}

// UpdateTarget changes the target amount. Owner-only; the home currency is
// immutable and has no update path at all.
func (s *EntityService) UpdateTarget(ctx context.Context, entityID, actorID, target string) error {
	targetCents, err := parseTarget(target)
	if err != nil {
		return err
	}

	e, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if !e.IsOwner(actorID) {
		return core.ErrNotOwner
	}

	if err := s.entities.UpdateTarget(ctx, entityID, targetCents); err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	return nil
}

// Delete removes the entity and its ledger. Owner-only, delegated to the
// ledger service which enforces the owner check.
func (s *EntityService) Delete(ctx context.Context, entityID, actorID string) error {
	return s.ledger.Remove(ctx, entityID, actorID)
}

// parseTarget accepts "0" and "" (no target) in addition to positive
// decimals, unlike contribution amounts which must be strictly positive.
func parseTarget(target string) (int64, error) {
	if target == "" || target == "0" {
		return 0, nil
	}
	return core.ParseDecimalToCents(target)
}
