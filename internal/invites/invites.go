// Package invites issues and redeems the short codes that let users join a
// shared budget or goal.
package invites

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const (
	// DefaultTTL matches the observed one-hour code expiry.
	DefaultTTL = time.Hour

	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	ErrInvalidCode = errors.New("invalid invite code")
	ErrCodeExpired = errors.New("invite code expired")
)

type Service struct {
	invitations store.InvitationStore
	entities    store.EntityStore
	now         func() time.Time
}

func NewService(invitations store.InvitationStore, entities store.EntityStore) *Service {
	return &Service{
		invitations: invitations,
		entities:    entities,
		now:         time.Now,
	}
}

// Create issues a code for the entity. Only the owner can invite.
func (s *Service) Create(ctx context.Context, entityID, createdBy string, ttl time.Duration) (core.Invitation, error) {
	e, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return core.Invitation{}, err
	}
	if !e.IsOwner(createdBy) {
		return core.Invitation{}, core.ErrNotOwner
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	code, err := newCode()
	if err != nil {
		return core.Invitation{}, fmt.Errorf("generate invite code: %w", err)
	}

	now := s.now().UTC()
	inv := core.Invitation{
		ID:        uuid.NewString(),
		Code:      code,
		EntityID:  entityID,
		CreatedBy: createdBy,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return core.Invitation{}, fmt.Errorf("store invitation: %w", err)
	}

	slog.InfoContext(ctx, "Invitation created",
		"entity_id", entityID,
		"expires_at", inv.ExpiresAt)

	return inv, nil
}

// Join redeems a code and adds the user to the entity's participant set.
// Joining an entity you already belong to is a no-op success.
func (s *Service) Join(ctx context.Context, code, userID string) (core.Entity, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return core.Entity{}, ErrInvalidCode
	}

	inv, err := s.invitations.GetInvitationByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return core.Entity{}, ErrInvalidCode
	}
	if err != nil {
		return core.Entity{}, fmt.Errorf("look up invitation: %w", err)
	}

	if inv.Expired(s.now()) {
		return core.Entity{}, ErrCodeExpired
	}

	if err := s.entities.AddParticipant(ctx, inv.EntityID, userID); err != nil {
		return core.Entity{}, fmt.Errorf("add participant: %w", err)
	}

	e, err := s.entities.GetEntity(ctx, inv.EntityID)
	if err != nil {
		return core.Entity{}, err
	}

	slog.InfoContext(ctx, "User joined entity via invite",
		"entity_id", inv.EntityID,
		"user_id", userID)

	return e, nil
}

func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
