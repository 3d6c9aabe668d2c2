// Package sqlite implements the ledger store on SQLite through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout is fixed width so text comparison matches time order.
const timeLayout = "2006-01-02 15:04:05.000000"

const schema = `
CREATE TABLE IF NOT EXISTS recently_crawled_urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	crawl_timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recently_crawled_urls_ts ON recently_crawled_urls(crawl_timestamp);
`

// Store is a SQLite-backed ledger store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// CrawledSince reports whether url was recorded at or after since.
func (s *Store) CrawledSince(ctx context.Context, url string, since time.Time) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM recently_crawled_urls WHERE url = ? AND crawl_timestamp >= ?)`,
		url, format(since),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query crawl entry: %w", err)
	}
	return exists == 1, nil
}

// Upsert sets the crawl time of url.
func (s *Store) Upsert(ctx context.Context, url string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recently_crawled_urls (url, crawl_timestamp) VALUES (?, ?)
		ON CONFLICT(url) DO UPDATE SET crawl_timestamp = excluded.crawl_timestamp`,
		url, format(at),
	)
	if err != nil {
		return fmt.Errorf("upsert crawl entry: %w", err)
	}
	return nil
}

// DeleteBefore removes entries older than cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM recently_crawled_urls WHERE crawl_timestamp < ?`,
		format(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("delete crawl entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func format(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
