// Package server builds the crawler service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/api"
	"github.com/JakeFAU/crawlersvc/internal/clock/system"
	"github.com/JakeFAU/crawlersvc/internal/config"
	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/dispatcher"
	"github.com/JakeFAU/crawlersvc/internal/extract"
	collyfetcher "github.com/JakeFAU/crawlersvc/internal/fetcher/colly"
	"github.com/JakeFAU/crawlersvc/internal/hash/sha256"
	"github.com/JakeFAU/crawlersvc/internal/id/timestamp"
	"github.com/JakeFAU/crawlersvc/internal/ledger"
	"github.com/JakeFAU/crawlersvc/internal/logging"
	"github.com/JakeFAU/crawlersvc/internal/metrics"
	gcppublisher "github.com/JakeFAU/crawlersvc/internal/publisher/pubsub"
	"github.com/JakeFAU/crawlersvc/internal/results"
	"github.com/JakeFAU/crawlersvc/internal/scheduler"
	"github.com/JakeFAU/crawlersvc/internal/tracing"
	blob "github.com/JakeFAU/crawlersvc/internal/storage"
	gcsstorage "github.com/JakeFAU/crawlersvc/internal/storage/gcs"
	localstorage "github.com/JakeFAU/crawlersvc/internal/storage/local"
	memorystorage "github.com/JakeFAU/crawlersvc/internal/storage/memory"
)

const (
	serviceName      = "crawlersvc"
	shutdownTimeout  = 10 * time.Second
	cancelDrain      = 2 * time.Second
	readinessURL     = "readyz://ledger"
	taskLedgerPurge  = "ledger_purge"
	taskResultsClean = "result_cleanup"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	ledger       *ledger.Ledger
	results      *results.Store
	orchestrator *crawler.Orchestrator
	ids          crawler.IDGenerator
	dispatch     *dispatcher.Dispatcher
	scheduler    *scheduler.Scheduler
	apiServer    *api.Server

	gcsClient       *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	tracerProvider  *sdktrace.TracerProvider

	crawlCancel context.CancelFunc
	closeOnce   sync.Once
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *zap.Logger
}

// WithLogger skips logger construction and uses l instead.
func WithLogger(l *zap.Logger) Option {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	logger := bo.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	tp, err := tracing.Init(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	app := &App{cfg: cfg, logger: logger, tracerProvider: tp}
	logger.Info("building application dependencies",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	if err := app.build(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	clock := system.New()

	store, err := ledger.OpenStore(ctx, a.cfg.Ledger.DSN, a.cfg.Ledger.MaxConns)
	if err != nil {
		return fmt.Errorf("ledger init failed: %w", err)
	}
	a.ledger = ledger.New(store, clock, a.logger.Named("ledger"))

	backend, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	a.results, err = results.New(backend, clock, results.Config{
		MaxAge:   a.cfg.Retention.MaxAge,
		MaxBytes: a.cfg.Retention.MaxBytes,
	}, a.logger.Named("results"))
	if err != nil {
		return fmt.Errorf("result store init failed: %w", err)
	}

	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	a.ids = timestamp.New(clock.Now)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Crawler.UserAgent,
		Timeout:   a.cfg.HTTP.Timeout(),
	})
	crawlCfg := crawler.Config{
		UserAgent:          a.cfg.Crawler.UserAgent,
		FallbackUserAgent:  a.cfg.Crawler.FallbackUserAgent,
		MaxInFlightFetches: a.cfg.Crawler.MaxInFlightFetches,
		Topic:              a.cfg.PubSub.TopicName,
	}
	if err := crawlCfg.Validate(); err != nil {
		return fmt.Errorf("crawler config: %w", err)
	}
	a.orchestrator = crawler.NewOrchestrator(
		fetcher,
		extract.New(),
		a.ledger,
		a.results,
		publisher,
		clock,
		a.ids,
		crawlCfg,
		a.logger.Named("crawler"),
		crawler.WithHasher(sha256.New()),
	)
	a.logger.Info("crawler configured",
		zap.String("user_agent", crawlCfg.UserAgent),
		zap.Int64("max_in_flight_fetches", crawlCfg.MaxInFlightFetches),
		zap.Duration("fetch_timeout", a.cfg.HTTP.Timeout()),
	)

	crawlCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.crawlCancel = cancel
	a.dispatch = dispatcher.New(crawlCtx, a.orchestrator, a.ids, a.logger.Named("dispatcher"))

	a.scheduler = scheduler.New(scheduler.Config{
		Interval:       a.cfg.Scheduler.Interval,
		SkipInitialRun: !a.cfg.Scheduler.RunOnStart,
	}, a.logger.Named("scheduler"), a.maintenanceTasks()...)

	a.apiServer = api.NewServer(
		a.dispatch,
		a.ledger,
		a.results,
		a.logger.Named("api"),
		api.WithReadiness(a.ledgerReady),
	)
	return nil
}

func (a *App) setupStorage(ctx context.Context) (blob.Backend, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		store, client, err := gcsstorage.Open(ctx, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcsClient = client
		return store, nil
	case config.StorageMemory:
		a.logger.Warn("using in-memory storage backend; results are lost on restart")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.BaseDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub topic configured, artifact notifications disabled")
		return nil, nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = gcppublisher.New(a.pubsubClient)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.pubsubPublisher, nil
}

// maintenanceTasks purges the ledger before cleaning results.
func (a *App) maintenanceTasks() []scheduler.Task {
	return []scheduler.Task{
		{
			Name: taskLedgerPurge,
			Run: func(ctx context.Context) error {
				_, err := a.ledger.Purge(ctx)
				return err
			},
		},
		{
			Name: taskResultsClean,
			Run: func(ctx context.Context) error {
				_, err := a.results.Cleanup(ctx)
				return err
			},
		},
	}
}

func (a *App) ledgerReady(ctx context.Context) error {
	if a.ledger.Check(ctx, readinessURL) == crawler.VerdictUnknown {
		return errors.New("ledger unavailable")
	}
	return nil
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Crawl runs one crawl tree in the foreground under a new job ID and returns
// that ID once every branch has finished.
func (a *App) Crawl(ctx context.Context, url string) (string, error) {
	if !crawler.HasHTTPPrefix(url) {
		return "", fmt.Errorf("url must start with http:// or https://: %q", url)
	}
	jobID, err := a.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	a.orchestrator.Crawl(ctx, crawler.Task{JobID: jobID, URL: url})
	return jobID, nil
}

// Maintain runs every maintenance task once.
func (a *App) Maintain(ctx context.Context) error {
	return a.scheduler.RunOnce(ctx)
}

// Run starts the scheduler and HTTP server and blocks until the context is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return closeErr
}

// Close stops background work and releases every client. Crawls still
// running when ctx expires are canceled. Later calls are no-ops.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { a.close(ctx) })
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatch != nil {
		if err := a.dispatch.Wait(ctx); err != nil {
			a.logger.Warn("crawls still running at shutdown; canceling", zap.Error(err))
		}
	}
	if a.crawlCancel != nil {
		a.crawlCancel()
	}
	if a.dispatch != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cancelDrain)
		if err := a.dispatch.Wait(drainCtx); err != nil {
			a.logger.Warn("canceled crawls did not stop in time", zap.Error(err))
		}
		cancel()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("ledger close failed", zap.Error(err))
		}
	}
	if a.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cancelDrain)
		defer cancel()
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}
}
