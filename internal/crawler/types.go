package crawler

import (
	"net/http"
	"time"
)

// MaxDepth is the deepest level crawled; tasks at MaxDepth+1 are refused.
const MaxDepth = 5

// Task is one step of a recursive crawl. It is never persisted.
type Task struct {
	// JobID groups the artifacts produced by one submission. Empty means the
	// orchestrator mints a timestamp id per artifact.
	JobID string
	URL   string
	Depth int
}

// Child returns the task for a link discovered by t.
func (t Task) Child(link string) Task {
	return Task{JobID: t.JobID, URL: link, Depth: t.Depth + 1}
}

// Artifact is the record persisted for each successful HTML fetch.
type Artifact struct {
	URL      string           `json:"url"`
	Links    []string         `json:"links"`
	Title    string           `json:"title"`
	Metadata ArtifactMetadata `json:"metadata"`
	Content  string           `json:"content"`
}

// ArtifactMetadata describes how an artifact was obtained.
type ArtifactMetadata struct {
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type"`
	Depth        int       `json:"depth"`
	FetchedAt    time.Time `json:"fetched_at"`
	DurationMs   int64     `json:"duration_ms"`
	UsedFallback bool      `json:"used_fallback"`
	LinkCount    int       `json:"link_count"`
	ContentHash  string    `json:"content_hash,omitempty"`
}

// Document is the parsed view of an HTML page.
type Document struct {
	Links []string
	Title string
	Text  string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL       string
	UserAgent string
	Headers   http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	return r.Headers.Get("Content-Type")
}

// Verdict is the ledger's answer to "was this URL crawled recently?".
type Verdict int

// Verdict values. VerdictUnknown means the lookup failed.
const (
	VerdictUnknown Verdict = iota
	VerdictNotCrawled
	VerdictRecent
)

func (v Verdict) String() string {
	switch v {
	case VerdictNotCrawled:
		return "not_crawled"
	case VerdictRecent:
		return "recent"
	default:
		return "unknown"
	}
}

// Outcome labels the terminal state of one crawl step.
type Outcome string

// Terminal outcomes of a crawl step.
const (
	OutcomeInvalidURL      Outcome = "invalid_scheme"
	OutcomeMaxDepth        Outcome = "max_depth"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeFetchFailed     Outcome = "fetch_failed"
	OutcomeContentMismatch Outcome = "content_mismatch"
	OutcomeParseFailed     Outcome = "parse_failed"
	OutcomeCrawled         Outcome = "crawled"
)
