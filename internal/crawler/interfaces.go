package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LinkExtractor parses an HTML body.
type LinkExtractor interface {
	Extract(body []byte) (Document, error)
}

// Ledger records which URLs were crawled recently.
// Check never fails: lookup errors are reported as VerdictUnknown.
type Ledger interface {
	Check(ctx context.Context, url string) Verdict
	Record(ctx context.Context, url string) error
}

// ArtifactStore persists artifacts under a job namespace and returns their location.
type ArtifactStore interface {
	Save(ctx context.Context, jobID string, artifact Artifact) (string, error)
}

// Publisher pushes artifact notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher fingerprints fetched bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}
