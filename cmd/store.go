package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/michojekunle/amala-atlas/internal/places"
	"github.com/michojekunle/amala-atlas/internal/resilience"
	"github.com/michojekunle/amala-atlas/internal/store"
	"github.com/michojekunle/amala-atlas/internal/verification"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "atlas.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newEngine(st store.Store) *verification.Engine {
	return verification.NewEngine(st,
		verification.ThresholdsFromConfig(cfg.Verification),
		verification.WithRetry(resilience.FromRetryConfig(
			cfg.Verification.RetryAttempts,
			cfg.Verification.RetryBackoffMS,
		)),
	)
}

func newDirectory(st store.Store) *places.Directory {
	return places.NewDirectory(st, cfg.Places)
}
