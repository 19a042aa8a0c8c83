package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrumix/scrumix/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store is the PostgreSQL database.Store. Methods are split across the
// store_*.go files by aggregate.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool. The caller keeps ownership of the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping reports whether the database answers; it backs /health/ready.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
