// Package store defines the outbound ports for durable entity and
// invitation persistence. Implementations: the in-memory store (tests,
// single-process use) and the SQLite repository in internal/storage.
package store

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrNotFound is returned when the addressed entity or invitation does not
// exist — including when it was deleted concurrently by its owner while
// another participant was acting on it.
var ErrNotFound = errors.New("not found")

type (
	// EntityStore persists funding entities and their embedded ledgers.
	//
	// AppendContribution must be lost-update-free under concurrent calls
	// for the same entity: cached totals are incremented and the event
	// appended atomically, never via read-modify-write of a full snapshot.
	EntityStore interface {
		CreateEntity(ctx context.Context, e core.Entity) error
		GetEntity(ctx context.Context, id string) (core.Entity, error)
		ListEntitiesByParticipant(ctx context.Context, userID string) ([]core.Entity, error)
		AppendContribution(ctx context.Context, entityID string, ev core.ContributionEvent) error
		Totals(ctx context.Context, entityID string) (core.Totals, error)
		RecentEvents(ctx context.Context, entityID string, limit int) ([]core.ContributionEvent, error)
		UpdateTarget(ctx context.Context, entityID string, targetCents int64) error
		AddParticipant(ctx context.Context, entityID, userID string) error
		// DeleteEntity removes the entity and its embedded ledger
		// atomically; no partial deletion state may be observable.
		DeleteEntity(ctx context.Context, entityID string) error
	}

	// InvitationStore persists invite codes for shared entities.
	InvitationStore interface {
		CreateInvitation(ctx context.Context, inv core.Invitation) error
		GetInvitationByCode(ctx context.Context, code string) (core.Invitation, error)
		DeleteInvitation(ctx context.Context, id string) error
	}
)
