// Package results persists crawl artifacts as JSON objects grouped by job,
// serves them back page by page and enforces the retention limits.
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/storage"
)

const (
	// DefaultMaxAge is how long artifacts are retained.
	DefaultMaxAge = 30 * 24 * time.Hour
	// DefaultMaxBytes caps the total size of stored artifacts (100 GiB).
	DefaultMaxBytes int64 = 100 << 30
	// PageSize is the number of results returned per page.
	PageSize = 100

	keyLayout = "20060102150405.000000"
	extension = ".json"
)

var (
	// ErrInvalidJobID is returned for empty job IDs or IDs that are not a single path segment.
	ErrInvalidJobID = errors.New("job_id must be a non-empty string")
	// ErrJobNotFound is returned when a job has no stored namespace.
	ErrJobNotFound = errors.New("job results not found")
	// ErrInvalidPage is returned for page numbers below 1.
	ErrInvalidPage = errors.New("page must be greater than 0")
	// ErrPageOutOfRange is returned when the page exceeds the total page count.
	ErrPageOutOfRange = errors.New("page number out of range")
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Config controls retention.
type Config struct {
	MaxAge   time.Duration
	MaxBytes int64
}

// Store writes and reads artifacts through a storage.Backend.
type Store struct {
	backend storage.Backend
	clock   Clock
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	lastKey time.Time
}

var _ crawler.ArtifactStore = (*Store)(nil)

// New creates a Store. Zero config values fall back to the defaults.
func New(backend storage.Backend, clock Clock, cfg Config, logger *zap.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Save writes artifact under jobID and returns its location.
func (s *Store) Save(ctx context.Context, jobID string, artifact crawler.Artifact) (string, error) {
	return s.SaveRecord(ctx, jobID, artifact)
}

// SaveRecord serializes any JSON-encodable value as a new object under jobID.
func (s *Store) SaveRecord(ctx context.Context, jobID string, record any) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	key := jobID + "/" + s.nextName()
	location, err := s.backend.PutObject(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return location, nil
}

// nextName returns a timestamp filename strictly after the previous one.
func (s *Store) nextName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.clock.Now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.lastKey) {
		ts = s.lastKey.Add(time.Microsecond)
	}
	s.lastKey = ts
	return ts.Format(keyLayout) + extension
}

func validateJobID(jobID string) error {
	if strings.TrimSpace(jobID) == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return ErrInvalidJobID
	}
	return nil
}
