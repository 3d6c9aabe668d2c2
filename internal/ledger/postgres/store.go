// Package postgres implements the ledger store on Postgres through pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS recently_crawled_urls (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	crawl_timestamp TIMESTAMPTZ NOT NULL
)`
	createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_recently_crawled_urls_ts ON recently_crawled_urls (crawl_timestamp)`
	existsSQL      = `SELECT EXISTS(SELECT 1 FROM recently_crawled_urls WHERE url = $1 AND crawl_timestamp >= $2)`
	upsertSQL      = `INSERT INTO recently_crawled_urls (url, crawl_timestamp) VALUES ($1, $2)
ON CONFLICT (url) DO UPDATE SET crawl_timestamp = EXCLUDED.crawl_timestamp`
	deleteSQL = `DELETE FROM recently_crawled_urls WHERE crawl_timestamp < $1`
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store is a Postgres-backed ledger store.
type Store struct {
	pool pool
}

// Open connects to Postgres and ensures the table exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(ctx, p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing)
// and creates the table if missing.
func NewWithPool(ctx context.Context, p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if _, err := p.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	if _, err := p.Exec(ctx, createIndexSQL); err != nil {
		return nil, fmt.Errorf("create ledger index: %w", err)
	}
	return &Store{pool: p}, nil
}

// CrawledSince reports whether url was recorded at or after since.
func (s *Store) CrawledSince(ctx context.Context, url string, since time.Time) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, existsSQL, url, since.UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("query crawl entry: %w", err)
	}
	return exists, nil
}

// Upsert sets the crawl time of url.
func (s *Store) Upsert(ctx context.Context, url string, at time.Time) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, url, at.UTC()); err != nil {
		return fmt.Errorf("upsert crawl entry: %w", err)
	}
	return nil
}

// DeleteBefore removes entries older than cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteSQL, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete crawl entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
