// Package local persists per-user JSON blobs on disk. It backs entities that
// are private to one user (personal budgets and goals): a single writer per
// blob, so whole-file read/write/delete is enough and no atomicity is
// guaranteed.
package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Blobs struct {
	dir string
}

func New(dir string) (*Blobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Blobs{dir: dir}, nil
}

// Get reads the blob stored under the user's namespace.
func (b *Blobs) Get(userID, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(userID, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s/%s: %w", userID, key, err)
	}
	return data, nil
}

// Put writes the blob, replacing any previous value.
func (b *Blobs) Put(userID, key string, data []byte) error {
	if err := os.MkdirAll(filepath.Join(b.dir, sanitize(userID)), 0o755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}
	if err := os.WriteFile(b.path(userID, key), data, 0o644); err != nil {
		return fmt.Errorf("write blob %s/%s: %w", userID, key, err)
	}
	return nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (b *Blobs) Delete(userID, key string) error {
	err := os.Remove(b.path(userID, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s/%s: %w", userID, key, err)
	}
	return nil
}

// SaveEntities stores a user's personal entities as one JSON blob.
func (b *Blobs) SaveEntities(userID string, entities []core.Entity) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	return b.Put(userID, "entities", data)
}

// LoadEntities reads a user's personal entities; a missing blob yields an
// empty slice, not an error.
func (b *Blobs) LoadEntities(userID string) ([]core.Entity, error) {
	data, err := b.Get(userID, "entities")
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entities []core.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	return entities, nil
}

func (b *Blobs) path(userID, key string) string {
	return filepath.Join(b.dir, sanitize(userID), sanitize(key)+".json")
}

func sanitize(s string) string {
	repl := strings.NewReplacer("/", "_", "\\", "_", "..", "_", string(os.PathSeparator), "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
