// Package bootstrap connects the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"isupipe/internal/cache"
	"isupipe/internal/config"
	"isupipe/internal/database"
	"isupipe/internal/middleware"
	"isupipe/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedReference inserts the reservation slots and tags for the configured
	// term. Existing rows, and the capacity already taken from them, are kept.
	SeedReference bool
}

// InitRuntime connects to DB and Redis and optionally seeds reference data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedReference {
		if err := seedReference(ctx, cfg, db); err != nil {
			if rdb != nil {
				_ = rdb.Close()
			}
			return nil, nil, err
		}
	}
	return db, rdb, nil
}

func seedReference(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	termStart, termEnd, err := cfg.ReservationTerm()
	if err != nil {
		return err
	}
	res, err := seed.NewSeeder(db).Run(ctx, seed.Options{
		TermStart:    termStart,
		TermEnd:      termEnd,
		SlotCapacity: cfg.SlotCapacity,
	})
	if err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}
	middleware.Logger.InfoContext(ctx, "reference data ensured",
		slog.Int("slots", res.Slots),
		slog.Int("tags", res.Tags),
	)
	return nil
}
