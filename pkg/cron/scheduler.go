// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/report-tracker/internal/domain/report/service"
)

// DefaultSpec re-runs the pipeline twice a day.
const DefaultSpec = "@every 12h"

// Pipeline is the job the scheduler triggers.
type Pipeline interface {
	Run(ctx context.Context) *service.RunResult
}

// Scheduler manages background scheduled jobs using robfig/cron.
// Scheduled and manual runs share one mutex, so at most one pipeline run
// is in flight.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	spec     string
	timeout  time.Duration
	mu       sync.Mutex
	entry    cron.EntryID
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(p Pipeline, spec string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if spec == "" {
		spec = DefaultSpec
	}
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		pipeline: p,
		spec:     spec,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, s.runScheduled)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.entry = id

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("spec", s.spec),
		slog.Time("next_run", s.cron.Entry(id).Next),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once a running job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the pipeline immediately, waiting for any run in progress.
func (s *Scheduler) RunNow(ctx context.Context) *service.RunResult {
	return s.run(ctx, "manual")
}

func (s *Scheduler) runScheduled() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.run(ctx, "scheduled")

	if s.entry != 0 {
		s.logger.Debug("next scheduled run", slog.Time("next_run", s.cron.Entry(s.entry).Next))
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) *service.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("starting pipeline run", slog.String("trigger", trigger))
	res := s.pipeline.Run(ctx)
	s.logger.Info("pipeline run completed",
		slog.String("trigger", trigger),
		slog.String("run_id", res.RunID.String()),
		slog.Int("ingested", len(res.Ingested)),
	)
	return res
}
