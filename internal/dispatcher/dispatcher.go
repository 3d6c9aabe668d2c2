// Package dispatcher starts crawl trees in the background on behalf of the
// submission endpoints.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/metrics"
)

// Crawler runs one crawl tree to completion.
type Crawler interface {
	Crawl(ctx context.Context, task crawler.Task)
}

// Dispatcher fans submitted URLs out to background crawls sharing one job ID.
type Dispatcher struct {
	ctx     context.Context
	crawler Crawler
	ids     crawler.IDGenerator
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// New creates a Dispatcher. Crawls run under ctx, so cancelling it stops
// every crawl that is still fetching.
func New(ctx context.Context, c Crawler, ids crawler.IDGenerator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ctx:     ctx,
		crawler: c,
		ids:     ids,
		logger:  logger,
	}
}

// Submit starts one crawl at depth 0 and returns its job ID.
func (d *Dispatcher) Submit(url string) (string, error) {
	return d.SubmitBatch([]string{url})
}

// SubmitBatch starts one crawl per URL, all under a single new job ID.
func (d *Dispatcher) SubmitBatch(urls []string) (string, error) {
	jobID, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	for _, url := range urls {
		d.start(crawler.Task{JobID: jobID, URL: url})
	}
	d.logger.Info("crawl job dispatched", zap.String("job_id", jobID), zap.Int("urls", len(urls)))
	return jobID, nil
}

func (d *Dispatcher) start(task crawler.Task) {
	d.wg.Add(1)
	metrics.IncCrawlsInFlight()
	go func() {
		defer d.wg.Done()
		defer metrics.DecCrawlsInFlight()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("crawl panicked", zap.String("url", task.URL), zap.Any("panic", r))
			}
		}()
		d.crawler.Crawl(d.ctx, task)
	}()
}

// Wait blocks until every dispatched crawl has returned or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for crawls: %w", ctx.Err())
	}
}
