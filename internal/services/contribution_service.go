// Package services orchestrates the user-facing operations: validation,
// conversion, ledger writes and the best-effort sync publish that feeds the
// reconcile worker.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/convert"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/store"
)

// ContributionInput is the raw user input for one credit or debit.
type ContributionInput struct {
	Amount   string // decimal string, validated before any I/O
	Currency core.CurrencyCode
	Kind     core.EventKind
}

type ContributionService struct {
	entities   store.EntityStore
	ledger     *ledger.Service
	converter  *convert.Converter
	amqpClient *amqp.Client
}

func NewContributionService(entities store.EntityStore, lg *ledger.Service, conv *convert.Converter, amqpClient *amqp.Client) *ContributionService {
	return &ContributionService{
		entities:   entities,
		ledger:     lg,
		converter:  conv,
		amqpClient: amqpClient,
	}
}

// Contribute validates the input, converts it into the entity's home
// currency and appends the resulting event to the ledger.
//
// Validation happens before any network or store I/O. Conversion degrades to
// the fallback path rather than blocking the financial action; only
// persistence failures abort.
func (s *ContributionService) Contribute(ctx context.Context, entityID, actorID, actorName string, in ContributionInput) (core.ContributionEvent, error) {
	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.ContributionEvent{}, err
	}
	if err := in.Currency.Validate(); err != nil {
		return core.ContributionEvent{}, err
	}
	if err := in.Kind.Validate(); err != nil {
		return core.ContributionEvent{}, err
	}
	if actorID == "" {
		return core.ContributionEvent{}, core.ErrEmptyActor
	}

	entity, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return core.ContributionEvent{}, err
	}
	if !entity.IsParticipant(actorID) {
		return core.ContributionEvent{}, core.ErrNotParticipant
	}

	res := s.converter.ConvertWithFallback(ctx, cents, in.Currency, entity.HomeCurrency)

	ev := core.ContributionEvent{
		ID:               uuid.NewString(),
		ActorID:          actorID,
		ActorName:        actorName,
		Kind:             in.Kind,
		Original:         core.Money{Cents: cents},
		OriginalCurrency: in.Currency,
		ConvertedCents:   res.Cents,
		Rate:             res.Rate,
		Fallback:         res.Fallback,
		OccurredAt:       time.Now().UTC(),
	}

	if err := s.ledger.Append(ctx, entityID, ev); err != nil {
		return core.ContributionEvent{}, fmt.Errorf("record contribution: %w", err)
	}

	// Best effort: the contribution is durable, a lost sync message only
	// delays reconciliation until the worker's next sweep.
	if err := s.publishSync(ctx, entityID, ev.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entity_id", entityID,
			"event_id", ev.ID,
			"error", err)
	}

	return ev, nil
}

// TransferResult describes one completed leftover transfer.
type TransferResult struct {
	LeftoverCents  int64 // debited from the budget, in its home currency
	ConvertedCents int64 // credited to the goal, in its home currency
	Rate           float64
	Fallback       bool
}

// TransferLeftover moves a budget's remaining allowance into a goal at the
// end of a spending period: the leftover (target + credits − debits) is
// debited from the budget and credited to the goal, converted into the
// goal's home currency when the two differ. Both sides are ordinary ledger
// events, so the transfer shows up in history and reconciles like any
// contribution.
//
// Draining the whole allowance is administrative, so the actor must own the
// budget; crediting the goal only requires membership.
func (s *ContributionService) TransferLeftover(ctx context.Context, budgetID, goalID, actorID, actorName string) (TransferResult, error) {
	if actorID == "" {
		return TransferResult{}, core.ErrEmptyActor
	}

	budget, err := s.entities.GetEntity(ctx, budgetID)
	if err != nil {
		return TransferResult{}, err
	}
	if budget.Kind != core.Budget {
		return TransferResult{}, core.ErrNotBudget
	}
	if !budget.IsOwner(actorID) {
		return TransferResult{}, core.ErrNotOwner
	}

	goal, err := s.entities.GetEntity(ctx, goalID)
	if err != nil {
		return TransferResult{}, err
	}
	if goal.Kind != core.Goal {
		return TransferResult{}, core.ErrNotGoal
	}
	if !goal.IsParticipant(actorID) {
		return TransferResult{}, core.ErrNotParticipant
	}

	leftover := budget.TargetCents + budget.CreditCents - budget.DebitCents
	if leftover <= 0 {
		return TransferResult{}, core.ErrNoLeftover
	}

	res := s.converter.ConvertWithFallback(ctx, leftover, budget.HomeCurrency, goal.HomeCurrency)
	now := time.Now().UTC()

	// The debit lands first: on a failed credit the budget already shows
	// the drain and the goal is unchanged, never the other way around.
	debit := core.ContributionEvent{
		ID:               uuid.NewString(),
		ActorID:          actorID,
		ActorName:        actorName,
		Kind:             core.Debit,
		Original:         core.Money{Cents: leftover},
		OriginalCurrency: budget.HomeCurrency,
		ConvertedCents:   leftover,
		Rate:             1,
		OccurredAt:       now,
	}
	if err := s.ledger.Append(ctx, budgetID, debit); err != nil {
		return TransferResult{}, fmt.Errorf("record leftover debit: %w", err)
	}

	credit := core.ContributionEvent{
		ID:               uuid.NewString(),
		ActorID:          actorID,
		ActorName:        actorName,
		Kind:             core.Credit,
		Original:         core.Money{Cents: leftover},
		OriginalCurrency: budget.HomeCurrency,
		ConvertedCents:   res.Cents,
		Rate:             res.Rate,
		Fallback:         res.Fallback,
		OccurredAt:       now,
	}
	if err := s.ledger.Append(ctx, goalID, credit); err != nil {
		return TransferResult{}, fmt.Errorf("record leftover credit: %w", err)
	}

	for _, pair := range []struct{ entityID, eventID string }{
		{budgetID, debit.ID},
		{goalID, credit.ID},
	} {
		if err := s.publishSync(ctx, pair.entityID, pair.eventID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"entity_id", pair.entityID,
				"event_id", pair.eventID,
				"error", err)
		}
	}

	return TransferResult{
		LeftoverCents:  leftover,
		ConvertedCents: res.Cents,
		Rate:           res.Rate,
		Fallback:       res.Fallback,
	}, nil
}

func (s *ContributionService) publishSync(ctx context.Context, entityID, eventID string) error {
	if s.amqpClient == nil {
		return nil
	}
	return s.amqpClient.PublishEntitySync(ctx, entityID, eventID)
}
