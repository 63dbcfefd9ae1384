package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ConnectPostgres opens a small pool against databaseURL and checks it is reachable.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres credential store requires a database url")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return pool, nil
}

// PostgresStore shares a credential slot between hosts through a Postgres table.
type PostgresStore struct {
	pool     *pgxpool.Pool
	slot     string
	ownsPool bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore migrates the schema and returns a store for slot.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, slot string) (*PostgresStore, error) {
	// goose works on database/sql
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := runMigrations(ctx, goose.DialectPostgres, db, "migrations/postgres"); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, slot: slot}, nil
}

func (s *PostgresStore) Get(ctx context.Context) (string, error) {
	const query = `SELECT value FROM credentials WHERE slot = $1`

	var value string
	err := s.pool.QueryRow(ctx, query, s.slot).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", s.slot, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	const query = `
INSERT INTO credentials (slot, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (slot) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, s.slot, token); err != nil {
		return fmt.Errorf("set credential %q: %w", s.slot, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE slot = $1`
	if _, err := s.pool.Exec(ctx, query, s.slot); err != nil {
		return fmt.Errorf("clear credential %q: %w", s.slot, err)
	}
	return nil
}

// Close closes the pool when the store opened it.
func (s *PostgresStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
