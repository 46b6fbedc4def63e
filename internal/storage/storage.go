// Package storage selects and opens the configured journal.Store backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/config"
	"github.com/basicrecords/moodjournal/internal/journal"
	"github.com/basicrecords/moodjournal/internal/storage/badger"
	"github.com/basicrecords/moodjournal/internal/storage/memory"
	"github.com/basicrecords/moodjournal/internal/storage/redis"
	"github.com/basicrecords/moodjournal/internal/storage/sqlite"
)

// GarbageCollector is implemented by backends that need periodic compaction.
type GarbageCollector interface {
	RunGC() error
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (journal.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "memory":
		return memory.NewStore(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := badger.Open(badger.Config{
			Path:           cfg.Badger.Path,
			InMemory:       cfg.Badger.InMemory,
			SyncWrites:     cfg.Badger.SyncWrites,
			GCDiscardRatio: cfg.Badger.GCDiscardRatio,
			Logger:         logger.Named("badger"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
