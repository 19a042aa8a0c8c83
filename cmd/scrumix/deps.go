package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/scrumix/scrumix/internal/adapter/memory"
	"github.com/scrumix/scrumix/internal/adapter/postgres"
	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/port/database"
)

// How long startup keeps retrying backing services that are still booting,
// as happens when the whole stack starts together.
const (
	postgresRetryWindow = 30 * time.Second
	natsRetryWindow     = 10 * time.Second
)

// retryConnect calls connect with exponential backoff until it succeeds,
// returns a permanent error, or window elapses.
func retryConnect[T any](ctx context.Context, name string, window time.Duration, connect func() (T, error)) (T, error) {
	return backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(window),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("backing service not ready, retrying", "service", name, "retry_in", next, "error", err)
		}),
	)
}

// loadConfig reads configuration from the --config flag or the default file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// storeHandle is an opened persistence backend.
type storeHandle struct {
	store database.Store
	close func()
}

// openStore connects the configured backend. With migrate set, pending
// goose migrations run before the store is returned.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (*storeHandle, error) {
	if cfg.Store.Backend == "memory" {
		slog.Warn("using in-memory store, data is lost on exit")
		return &storeHandle{store: memory.NewStore(), close: func() {}}, nil
	}

	pool, err := retryConnect(ctx, "postgres", postgresRetryWindow, func() (*pgxpool.Pool, error) {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if errors.Is(err, postgres.ErrInvalidDSN) {
			return nil, backoff.Permanent(err)
		}
		return pool, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected")

	if migrate {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
	}

	return &storeHandle{store: postgres.NewStore(pool), close: pool.Close}, nil
}

// requirePostgres rejects commands that make no sense against the
// in-process store.
func requirePostgres(cfg *config.Config) error {
	if cfg.Store.Backend == "memory" {
		return fmt.Errorf("command requires the postgres store backend")
	}
	return nil
}
