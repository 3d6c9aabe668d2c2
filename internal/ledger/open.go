package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/crawlersvc/internal/ledger/memory"
	"github.com/JakeFAU/crawlersvc/internal/ledger/postgres"
	"github.com/JakeFAU/crawlersvc/internal/ledger/sqlite"
)

// DefaultDSN keeps the ledger in an in-process SQLite database.
const DefaultDSN = "sqlite:///:memory:"

// OpenStore selects a backend from the DSN scheme:
//
//	memory                     in-process map
//	sqlite:///path/to/file.db  SQLite file (sqlite:///:memory: for in-memory)
//	postgres://... | postgresql://...
func OpenStore(ctx context.Context, dsn string, maxConns int32) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = DefaultDSN
	}
	switch {
	case dsn == "memory" || dsn == "memory://":
		return memory.New(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return store, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		store, err := postgres.Open(ctx, postgres.Config{DSN: dsn, MaxConns: maxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported ledger dsn scheme in %q", redact(dsn))
	}
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return dsn
}
