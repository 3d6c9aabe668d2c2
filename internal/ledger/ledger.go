// Package ledger records which URLs were crawled recently so that a URL is
// fetched at most once per Window.
package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/metrics"
)

// Window is how long a crawled URL counts as recent.
const Window = 7 * 24 * time.Hour

// Store persists ledger entries.
type Store interface {
	// CrawledSince reports whether url has an entry at or after since.
	CrawledSince(ctx context.Context, url string, since time.Time) (bool, error)
	// Upsert sets the crawl time of url, inserting the entry if needed.
	Upsert(ctx context.Context, url string, at time.Time) error
	// DeleteBefore removes entries crawled strictly before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Ledger applies the recency window on top of a Store.
type Ledger struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

var _ crawler.Ledger = (*Ledger)(nil)

// New creates a Ledger.
func New(store Store, clock Clock, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, clock: clock, logger: logger}
}

// Check reports whether url was crawled within the window. Store failures
// are logged and reported as VerdictUnknown.
func (l *Ledger) Check(ctx context.Context, url string) crawler.Verdict {
	since := l.clock.Now().UTC().Add(-Window)
	recent, err := l.store.CrawledSince(ctx, url, since)
	if err != nil {
		l.logger.Error("ledger lookup failed", zap.String("url", url), zap.Error(err))
		return crawler.VerdictUnknown
	}
	if recent {
		return crawler.VerdictRecent
	}
	return crawler.VerdictNotCrawled
}

// Record marks url as crawled now.
func (l *Ledger) Record(ctx context.Context, url string) error {
	if err := l.store.Upsert(ctx, url, l.clock.Now().UTC()); err != nil {
		return fmt.Errorf("record %s: %w", url, err)
	}
	return nil
}

// Purge deletes every entry older than the window and returns how many were removed.
func (l *Ledger) Purge(ctx context.Context) (int64, error) {
	cutoff := l.clock.Now().UTC().Add(-Window)
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge ledger: %w", err)
	}
	metrics.ObserveLedgerPurge(n)
	l.logger.Info("purged ledger entries", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	if err := l.store.Close(); err != nil {
		return fmt.Errorf("close ledger store: %w", err)
	}
	return nil
}
