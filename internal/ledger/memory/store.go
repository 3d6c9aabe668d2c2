// Package memory implements an in-process ledger store.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store keeps ledger entries in a map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]time.Time)}
}

// CrawledSince reports whether url was recorded at or after since.
func (s *Store) CrawledSince(_ context.Context, url string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.entries[url]
	return ok && !at.Before(since), nil
}

// Upsert sets the crawl time of url.
func (s *Store) Upsert(_ context.Context, url string, at time.Time) error {
	s.mu.Lock()
	s.entries[url] = at
	s.mu.Unlock()
	return nil
}

// DeleteBefore removes entries older than cutoff.
func (s *Store) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for url, at := range s.entries {
		if at.Before(cutoff) {
			delete(s.entries, url)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
