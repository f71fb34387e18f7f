// Package scheduler runs the recycle bin retention sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes held records past their retention window.
type Sweeper interface {
	CleanupOldItems(ctx context.Context) (int, error)
}

type RetentionScheduler struct {
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewRetentionScheduler(sweeper Sweeper, schedule string, timeout time.Duration, logger *slog.Logger) *RetentionScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &RetentionScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger.With("component", "retention"),
	}
}

// Start registers the sweep on a fresh cron, so a scheduler restarted after
// Stop still runs one sweep per tick.
func (s *RetentionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("retention scheduler already running")
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, s.runCleanup); err != nil {
		return fmt.Errorf("schedule retention sweep %q: %w", s.schedule, err)
	}

	s.cron = c
	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule. The returned context is done once a sweep that
// was already running has finished.
func (s *RetentionScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info("stopping retention scheduler")
	return s.cron.Stop()
}

func (s *RetentionScheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	removed, err := s.sweeper.CleanupOldItems(ctx)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}

	s.logger.Info("retention sweep completed", "removed", removed, "duration", time.Since(started))
}

// RunNow runs one sweep synchronously.
func (s *RetentionScheduler) RunNow() {
	s.runCleanup()
}
