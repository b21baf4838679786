package history

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/incidentdesk/internal/cache"
	"github.com/kiranshivaraju/incidentdesk/internal/config"
	"github.com/kiranshivaraju/incidentdesk/internal/store"
)

// OpenBackend constructs the history backend selected by config.
// Called once at start-up; the caller owns Close.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.History.Backend {
	case config.BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.History.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewStoreBackend(s, cfg.History.Key, s.Close), nil

	case config.BackendPostgres:
		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		closeFn := func() error {
			pool.Close()
			return nil
		}
		return NewStoreBackend(store.NewPostgresStore(pool), cfg.History.Key, closeFn), nil

	case config.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return NewCacheBackend(rc, cfg.History.Key, rc.Close), nil

	default:
		return nil, fmt.Errorf("unknown history backend %q: must be one of sqlite, redis, postgres", cfg.History.Backend)
	}
}
