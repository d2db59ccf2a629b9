// Package sched fires scheduled jobs on their configured intervals. It is
// deliberately stateless across restarts: the first run of each job lands
// one (jittered) interval after startup.
package sched

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mattjoyce/asubexec/internal/events"
	"github.com/mattjoyce/asubexec/internal/job"
)

// entry is one scheduled job and its next due time.
type entry struct {
	job     string
	every   time.Duration
	jitter  time.Duration
	nextRun time.Time
}

// Scheduler triggers jobs when their interval elapses. A busy job is
// skipped, not queued: the next chance is the following interval.
type Scheduler struct {
	tickInterval time.Duration
	trigger      Triggerer
	events       *events.Hub
	logger       *slog.Logger

	mu      sync.Mutex
	entries []*entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Scheduler instance.
func New(tickInterval time.Duration, trigger Triggerer, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if hub == nil {
		hub = events.NewHub(128)
	}
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Scheduler{
		tickInterval: tickInterval,
		trigger:      trigger,
		events:       hub,
		logger:       logger.With("component", "scheduler"),
		stopCh:       make(chan struct{}),
	}
}

// Add registers a job to fire every interval, plus up to jitter of random
// spread so a fleet of jobs does not stampede.
func (s *Scheduler) Add(jobName string, every, jitter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{
		job:     jobName,
		every:   every,
		jitter:  jitter,
		nextRun: time.Now().Add(calculateJitteredInterval(every, jitter)),
	})
}

// Start begins the scheduler's tick loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", "entries", len(s.entries), "tick", s.tickInterval)

	s.wg.Add(1)
	go s.tickLoop(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// tickLoop is the main scheduling loop.
func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.runDue(now)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Warn("Scheduler context cancelled, stopping tick loop")
			return
		}
	}
}

// runDue performs a single scheduling pass, firing every entry whose due
// time has passed.
func (s *Scheduler) runDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if now.Before(e.nextRun) {
			continue
		}
		// Reschedule first so a failed trigger cannot tight-loop.
		e.nextRun = now.Add(calculateJitteredInterval(e.every, e.jitter))

		err := s.trigger.Trigger(e.job)
		switch {
		case err == nil:
			s.events.Publish("scheduler.scheduled", map[string]any{"job": e.job})
			s.logger.Info("Scheduled job triggered", "job", e.job, "next_run", e.nextRun)
		case errors.Is(err, job.ErrBusy):
			s.events.Publish("scheduler.skipped", map[string]any{"job": e.job, "reason": "busy"})
			s.logger.Info("Skipped scheduled trigger", "job", e.job, "reason", "busy")
		default:
			s.logger.Error("Scheduled trigger failed", "job", e.job, "error", err)
		}
	}
}

// calculateJitteredInterval adds a random jitter to the base interval.
func calculateJitteredInterval(baseInterval time.Duration, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return baseInterval
	}
	randomJitter := time.Duration(rand.Int63n(jitter.Nanoseconds()))
	return baseInterval + randomJitter
}
