// internal/database/db.go

// Package database persists lobbies, chat, tournaments and match results to
// postgres via pgx. The in-memory registry and engine remain authoritative;
// the store is write-behind so a database outage degrades to memory-only
// operation instead of failing requests.
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Connect builds a pgx pool from the environment. DATABASE_URL wins when set;
// otherwise the connection string is composed from POSTGRES_USER,
// POSTGRES_PASSWORD, PG_HOST, PG_PORT and PG_DATABASE.
func Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("PG_HOST"),
			os.Getenv("PG_PORT"),
			os.Getenv("PG_DATABASE"),
		)
	}

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Store wraps the pool with the persistence operations the registry and
// tournament engine need.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewStore wraps a connected pool.
func NewStore(pool *pgxpool.Pool, log *logrus.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
