package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/crawlersvc/internal/metrics"
)

const tracerName = "github.com/JakeFAU/crawlersvc/internal/crawler"

// Orchestrator runs the recursive fetch-and-expand pipeline.
//
// Every step ends quietly: invalid schemes, depth overflow, recent duplicates,
// fetch failures and non-HTML responses are logged and counted, never returned.
// Storage failures are logged and do not stop recursion. Children of one page
// run concurrently and a failing branch never affects its siblings or parent.
type Orchestrator struct {
	fetcher   Fetcher
	extractor LinkExtractor
	ledger    Ledger
	store     ArtifactStore
	publisher Publisher
	clock     Clock
	idGen     IDGenerator
	hasher    Hasher
	sem       *semaphore.Weighted
	cfg       Config
	logger    *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHasher records a content hash in each artifact's metadata.
func WithHasher(h Hasher) Option {
	return func(o *Orchestrator) {
		o.hasher = h
	}
}

// NewOrchestrator constructs an Orchestrator. publisher may be nil.
func NewOrchestrator(
	fetcher Fetcher,
	extractor LinkExtractor,
	ledger Ledger,
	store ArtifactStore,
	publisher Publisher,
	clock Clock,
	idGen IDGenerator,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		ledger:    ledger,
		store:     store,
		publisher: publisher,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
	}
	if cfg.MaxInFlightFetches > 0 {
		o.sem = semaphore.NewWeighted(cfg.MaxInFlightFetches)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Crawl processes task and, for HTML pages, every link reachable from it up to
// MaxDepth. It blocks until the whole subtree has finished.
func (o *Orchestrator) Crawl(ctx context.Context, task Task) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crawl.visit", trace.WithAttributes(
		attribute.String("url.full", task.URL),
		attribute.Int("crawl.depth", task.Depth),
	))
	links, outcome := o.visit(ctx, task)
	span.SetAttributes(
		attribute.String("crawl.outcome", string(outcome)),
		attribute.Int("crawl.links", len(links)),
	)
	span.End()
	metrics.ObserveCrawl(string(outcome))
	if len(links) == 0 {
		return
	}
	o.expand(ctx, task, links)
}

func (o *Orchestrator) visit(ctx context.Context, task Task) ([]string, Outcome) {
	logger := o.logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth))

	if err := ValidateURL(task.URL); err != nil {
		logger.Error("invalid url scheme", zap.Error(err))
		return nil, OutcomeInvalidURL
	}
	if task.Depth > MaxDepth {
		logger.Info("maximum crawling depth reached")
		return nil, OutcomeMaxDepth
	}

	switch o.ledger.Check(ctx, task.URL) {
	case VerdictRecent:
		logger.Info("url already crawled recently")
		return nil, OutcomeDuplicate
	case VerdictUnknown:
		logger.Warn("ledger lookup failed; treating url as not crawled")
	}
	if err := o.ledger.Record(ctx, task.URL); err != nil {
		logger.Error("record crawl in ledger failed", zap.Error(err))
	}

	resp, usedFallback, err := o.fetch(ctx, task.URL, logger)
	if err != nil {
		logger.Error("fetch failed", zap.Error(err))
		return nil, OutcomeFetchFailed
	}
	metrics.ObserveFetch(task.URL, len(resp.Body))

	contentType := resp.ContentType()
	if resp.StatusCode != http.StatusOK || !strings.Contains(contentType, "text/html") {
		logger.Error("non-HTML content or unsuccessful response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("content_type", contentType),
		)
		return nil, OutcomeContentMismatch
	}

	doc, err := o.extractor.Extract(resp.Body)
	if err != nil {
		logger.Error("parse html failed", zap.Error(err))
		return nil, OutcomeParseFailed
	}

	artifact := Artifact{
		URL:     task.URL,
		Links:   doc.Links,
		Title:   doc.Title,
		Content: doc.Text,
		Metadata: ArtifactMetadata{
			StatusCode:   resp.StatusCode,
			ContentType:  contentType,
			Depth:        task.Depth,
			FetchedAt:    o.clock.Now().UTC(),
			DurationMs:   resp.Duration.Milliseconds(),
			UsedFallback: usedFallback,
			LinkCount:    len(doc.Links),
		},
	}
	if artifact.Links == nil {
		artifact.Links = []string{}
	}
	if o.hasher != nil {
		if sum, err := o.hasher.Hash(resp.Body); err == nil {
			artifact.Metadata.ContentHash = sum
		} else {
			logger.Warn("hash body failed", zap.Error(err))
		}
	}
	o.persist(ctx, task, artifact, logger)

	return doc.Links, OutcomeCrawled
}

// fetch tries the standard request once and falls back to the browser user
// agent when it errors or is not a 200.
func (o *Orchestrator) fetch(ctx context.Context, url string, logger *zap.Logger) (FetchResponse, bool, error) {
	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return FetchResponse{}, false, fmt.Errorf("wait for fetch slot: %w", err)
		}
		defer o.sem.Release(1)
	}

	resp, err := o.fetcher.Fetch(ctx, FetchRequest{URL: url, UserAgent: o.cfg.UserAgent})
	switch {
	case err != nil:
		logger.Warn("standard fetch failed", zap.Error(err))
	case resp.StatusCode != http.StatusOK:
		logger.Info("standard fetch returned non-200", zap.Int("status_code", resp.StatusCode))
	default:
		return resp, false, nil
	}

	metrics.ObserveFallback()
	resp, err = o.fetcher.Fetch(ctx, FetchRequest{URL: url, UserAgent: o.cfg.FallbackUserAgent})
	if err != nil {
		return FetchResponse{}, true, fmt.Errorf("fallback fetch: %w", err)
	}
	return resp, true, nil
}

func (o *Orchestrator) persist(ctx context.Context, task Task, artifact Artifact, logger *zap.Logger) {
	jobID := task.JobID
	if jobID == "" {
		id, err := o.idGen.NewID()
		if err != nil {
			metrics.ObserveArtifact("failed")
			logger.Error("generate job id failed", zap.Error(err))
			return
		}
		jobID = id
	}

	location, err := o.store.Save(ctx, jobID, artifact)
	if err != nil {
		metrics.ObserveArtifact("failed")
		logger.Error("store crawled data failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveArtifact("stored")
	logger.Info("stored crawled data",
		zap.String("job_id", jobID),
		zap.String("location", location),
		zap.Int("links", len(artifact.Links)),
	)

	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"job_id":     jobID,
		"url":        artifact.URL,
		"location":   location,
		"link_count": len(artifact.Links),
		"depth":      task.Depth,
		"fetched_at": artifact.Metadata.FetchedAt.Format(time.RFC3339Nano),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		logger.Warn("publish artifact notification failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// expand crawls every link at the next depth and waits for all of them.
func (o *Orchestrator) expand(ctx context.Context, parent Task, links []string) {
	var g errgroup.Group
	for _, link := range links {
		child := parent.Child(link)
		g.Go(func() error {
			defer o.recoverBranch(child)
			o.Crawl(ctx, child)
			return nil
		})
	}
	_ = g.Wait() // branches never return errors
}

func (o *Orchestrator) recoverBranch(task Task) {
	if r := recover(); r != nil {
		o.logger.Error("crawl branch panicked",
			zap.String("url", task.URL),
			zap.Int("depth", task.Depth),
			zap.Any("panic", r),
		)
	}
}
