package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/storage"
	"fintrack/internal/store/local"
	"fintrack/internal/store/memory"
)

// snapshotUser is the blob namespace the memory backend snapshots under.
const snapshotUser = "_shared"

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		st := memory.New()
		var cleanup CleanupFunc
		if config.DataDirectory != "" {
			blobs, err := local.New(config.DataDirectory)
			if err != nil {
				return nil, fmt.Errorf("initialize blob storage: %w", err)
			}
			entities, err := blobs.LoadEntities(snapshotUser)
			if err != nil {
				return nil, fmt.Errorf("load entity snapshot: %w", err)
			}
			st.Seed(entities)
			cleanup = func() error {
				return blobs.SaveEntities(snapshotUser, st.AllEntities())
			}
			f.logger.Info("Initialized memory backend",
				"data_directory", config.DataDirectory,
				"seeded_entities", len(entities))
		} else {
			f.logger.Info("Initialized memory backend")
		}
		return &Result{Store: st, Cleanup: cleanup}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
