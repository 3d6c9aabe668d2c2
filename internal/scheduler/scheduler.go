// Package scheduler runs maintenance tasks once at start and then on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/metrics"
)

// DefaultInterval is one day.
const DefaultInterval = 24 * time.Hour

// ErrRunInProgress is returned by RunOnce while another run is executing.
var ErrRunInProgress = errors.New("maintenance run already in progress")

// Task is one named maintenance step.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config controls scheduling.
type Config struct {
	Interval time.Duration
	// SkipInitialRun waits one interval before the first run.
	SkipInitialRun bool
}

// Scheduler owns a single goroutine that runs every task in order per tick.
type Scheduler struct {
	cfg    Config
	tasks  []Task
	logger *zap.Logger

	running atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Scheduler. Tasks run sequentially in the given order.
func New(cfg Config, logger *zap.Logger, tasks ...Task) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		tasks:  tasks,
		logger: logger,
	}
}

// Start launches the loop. Calling Start twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx)
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return. It is
// safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// RunOnce executes every task now unless a run is already executing.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer s.running.Store(false)

	var errs []error
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		begin := time.Now()
		err := task.Run(ctx)
		metrics.ObserveSchedulerRun(task.Name, err, time.Since(begin))
		if err != nil {
			s.logger.Error("maintenance task failed", zap.String("task", task.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
			continue
		}
		s.logger.Info("maintenance task finished",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(begin)),
		)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if !s.cfg.SkipInitialRun {
		s.tick(ctx)
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Info("skipping tick; previous run still in progress")
			return
		}
		s.logger.Warn("maintenance run finished with errors", zap.Error(err))
	}
}
