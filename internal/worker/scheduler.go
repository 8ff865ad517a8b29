// Package worker runs the platform's periodic jobs on cron schedules.
// Each run holds a distributed lock so several worker replicas can run
// side by side without doubling up.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lapublica/platform/internal/metrics"
	"github.com/lapublica/platform/internal/pkg/distlock"
	"github.com/lapublica/platform/internal/pkg/logger"
)

// maxLease caps the job lock lease. The lease is renewed while a job runs,
// so a crashed replica frees its job within one lease.
const maxLease = 30 * time.Second

// Job is one scheduled task.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (int, error)
}

// Locks runs fn while holding a named lock. *distlock.Factory satisfies it.
type Locks interface {
	Run(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Scheduler wires jobs into a cron instance.
type Scheduler struct {
	cron  *cron.Cron
	locks Locks
	ttl   time.Duration

	mu   sync.Mutex
	base context.Context
}

// New creates a scheduler. ttl bounds a single run.
func New(locks Locks, ttl time.Duration) *Scheduler {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		locks: locks,
		ttl:   ttl,
		base:  context.Background(),
	}
}

// Add registers j. Schedule uses the standard five-field cron syntax.
func (s *Scheduler) Add(j Job) error {
	if _, err := s.cron.AddFunc(j.Schedule, func() { s.RunNow(s.context(), j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Schedule, err)
	}
	logger.Info("scheduler: job registered", "job", j.Name, "schedule", j.Schedule)
	return nil
}

// RunNow executes j once under its lock and records the outcome.
func (s *Scheduler) RunNow(ctx context.Context, j Job) {
	ctx, cancel := context.WithTimeout(ctx, s.ttl)
	defer cancel()

	start := time.Now()
	var n int
	err := s.locks.Run(ctx, "job:"+j.Name, min(s.ttl, maxLease), func(ctx context.Context) error {
		var err error
		n, err = j.Run(ctx)
		return err
	})
	switch {
	case errors.Is(err, distlock.ErrLockLost):
		metrics.JobRuns.WithLabelValues(j.Name, "failed").Inc()
		logger.Warn("scheduler: job lost its lock", "job", j.Name, "duration", time.Since(start))
	case errors.Is(err, distlock.ErrNotAcquired):
		metrics.JobRuns.WithLabelValues(j.Name, "skipped").Inc()
		logger.Debug("scheduler: job locked elsewhere", "job", j.Name)
	case err != nil:
		metrics.JobRuns.WithLabelValues(j.Name, "failed").Inc()
		logger.Error("scheduler: job failed", "job", j.Name, "error", err, "duration", time.Since(start))
	default:
		metrics.JobRuns.WithLabelValues(j.Name, "ok").Inc()
		if n > 0 {
			logger.Info("scheduler: job done", "job", j.Name, "count", n, "duration", time.Since(start))
		}
	}
}

// Start runs the schedules until Stop. Jobs receive contexts derived from
// ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("scheduler: stop timed out with jobs still running")
	}
}

// Entries returns the number of registered schedules.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// cronLogger routes cron's own logging through the logger facade.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
