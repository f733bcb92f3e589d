package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

// Scanner runs a full scan.
type Scanner interface {
	FetchAll(ctx context.Context) (*news.CompleteScanResult, error)
}

// Scheduler runs full scans on a cron schedule. A tick that fires while the
// previous scan is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	scanner Scanner
	timeout time.Duration
}

// New builds a scheduler for spec (standard five-field cron syntax). Each
// scan is bounded by timeout when it is positive.
func New(spec string, scanner Scanner, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		),
	)

	s := &Scheduler{cron: c, scanner: scanner, timeout: timeout}
	if _, err := c.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid scan schedule %q: %w", spec, err)
	}
	return s, nil
}

// cronLogger sends cron's own messages to the process logger. Routine
// wake-ups go to debug.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Logger.Debug(msg, append([]interface{}{"component", "cron"}, keysAndValues...)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Logger.Error(msg, append([]interface{}{"component", "cron", "error", err}, keysAndValues...)...)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scan scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for a running scan to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("scheduler stop timed out with a scan still running")
	}
}

// Next returns the next scheduled scan time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce runs one scan now.
func (s *Scheduler) RunOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger.Info("scheduled scan starting")
	result, err := s.scanner.FetchAll(ctx)
	if err != nil {
		logger.Error("scheduled scan failed", "error", err)
		return
	}
	logger.Info("scheduled scan done", "sources", result.ProcessedSources, "new_articles", result.TotalNewArticles)
}
