// Package scheduler drives the per-cycle monitoring loop: enumerate enabled
// inputs, fan them out to probe handlers under a bounded worker pool and a
// per-input deadline, and coalesce results into a cycle summary.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tvqos/tvqos/internal/models"
)

// Scheduler owns the sequential cycle loop and the one piece of state that
// legitimately persists across cycles: the per-input last-snapshot-instant
// map used by the Snapshot Coordinator's throttle (§9 Design Notes — "keep it
// on the scheduler value, not in module-level state"). Cycles never overlap:
// the scheduler never starts runCycleOnce() again until the previous call has
// returned, so no lock is required around dispatch, only around the snapshot
// map and the last summary, both of which may be read by the HTTP surface
// concurrently with an in-flight cycle.
type Scheduler struct {
	runner *Runner
	logger *slog.Logger

	pollInterval time.Duration
	cronSchedule cron.Schedule

	mu            sync.Mutex
	snapshotTimes map[string]time.Time

	summaryMu   sync.RWMutex
	lastSummary models.CycleSummary
}

// NewScheduler creates a new Scheduler. When cronExpression is non-empty it
// takes precedence over pollInterval for computing the next cycle's fire time
// (§9.1 Open Question decision); an invalid cron expression is a
// configuration error returned immediately, not deferred to first use.
func NewScheduler(runner *Runner, pollInterval time.Duration, cronExpression string) (*Scheduler, error) {
	s := &Scheduler{
		runner:        runner,
		logger:        slog.Default(),
		pollInterval:  pollInterval,
		snapshotTimes: make(map[string]time.Time),
	}

	if cronExpression != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		schedule, err := parser.Parse(cronExpression)
		if err != nil {
			return nil, fmt.Errorf("parsing scheduler.cron_expression %q: %w", cronExpression, err)
		}
		s.cronSchedule = schedule
	}

	return s, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// Run blocks, driving the cycle loop until ctx is cancelled (graceful
// shutdown). Cycles are strictly sequential: the next cycle's sleep/cron wait
// begins only after the previous cycle has fully returned (§4.1, §9 "do not
// pipeline"). A cron fire that lands mid-cycle is naturally coalesced into
// "run again as soon as the current cycle finishes," since the scheduler
// isn't watching the clock while a cycle is in flight (§4.1b).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cycleStart := time.Now()
		s.runCycleOnce(ctx)

		wait := s.nextWait(cycleStart)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// nextWait returns how long to sleep before the next cycle: if a cron
// expression is configured, the time until its first match after cycleStart
// (zero when that match already passed during the cycle), otherwise the
// fixed poll interval.
func (s *Scheduler) nextWait(cycleStart time.Time) time.Duration {
	if s.cronSchedule == nil {
		return s.pollInterval
	}
	next := s.cronSchedule.Next(cycleStart)
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// runCycleOnce runs a single monitoring cycle and records its CycleSummary.
func (s *Scheduler) runCycleOnce(ctx context.Context) {
	cycleID := uuid.NewString()
	startedAt := time.Now()

	s.logger.Info("starting monitoring cycle", slog.String("cycle_id", cycleID))

	probed, failed := s.runner.RunCycle(ctx)

	completedAt := time.Now()
	summary := models.CycleSummary{
		CycleID:        cycleID,
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		InputsProbed:   probed,
		InputsFailed:   failed,
		DurationMillis: float64(completedAt.Sub(startedAt).Milliseconds()),
	}

	s.logger.Info("monitoring cycle complete",
		slog.String("cycle_id", cycleID),
		slog.Int("inputs_probed", probed),
		slog.Int("inputs_failed", failed),
		slog.Float64("duration_ms", summary.DurationMillis))

	s.summaryMu.Lock()
	s.lastSummary = summary
	s.summaryMu.Unlock()
}

// LastSummary returns the most recently completed cycle's summary, backing
// the ambient /status surface (§6.1).
func (s *Scheduler) LastSummary() models.CycleSummary {
	s.summaryMu.RLock()
	defer s.summaryMu.RUnlock()
	return s.lastSummary
}

// LastSnapshotInstant returns the wall-clock instant of the last successful
// snapshot for an input, and whether one has ever been recorded.
func (s *Scheduler) LastSnapshotInstant(inputID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.snapshotTimes[inputID]
	return t, ok
}

// RecordSnapshotInstant updates the last-snapshot-instant for an input. The
// scheduler never dispatches the same input to two concurrent tasks within a
// cycle, so this is updated by at most one goroutine per input at a time; the
// mutex only guards cross-cycle and concurrent-reader (status surface)
// access.
func (s *Scheduler) RecordSnapshotInstant(inputID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotTimes[inputID] = at
}
