package backend

import (
	"context"

	"fintrack/internal/store"
)

// Store is the unified persistence surface a backend must provide: durable
// entities plus invitations.
type Store interface {
	store.EntityStore
	store.InvitationStore
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// Result carries the backend instance and its optional cleanup.
type Result struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Type selects the persistence backend.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
