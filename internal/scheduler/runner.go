package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/internal/repository"
)

// Runner fans a single cycle's enumerated inputs out over a bounded worker
// pool, enforcing a per-input deadline. It holds no state across cycles other
// than what Scheduler passes in; the runner itself is stateless between
// RunCycle calls.
type Runner struct {
	inputRepo    repository.InputSourceRepository
	executor     *Executor
	logger       *slog.Logger
	workerCount  int
	taskDeadline time.Duration
}

// NewRunner creates a new cycle runner.
func NewRunner(inputRepo repository.InputSourceRepository, executor *Executor, workerCount int, taskDeadline time.Duration) *Runner {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Runner{
		inputRepo:    inputRepo,
		executor:     executor,
		logger:       slog.Default(),
		workerCount:  workerCount,
		taskDeadline: taskDeadline,
	}
}

// WithLogger sets a custom logger.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// RunCycle reads the enabled input list from the configuration store and
// dispatches each to the executor under a bounded worker pool, at most
// workerCount concurrent input tasks (§4.1). It returns the number of inputs
// probed and the number whose task panicked or did not complete within its
// deadline, used to populate the CycleSummary. A probe that returns an error
// is logged by the Executor and counted as probed, not failed.
//
// If the configuration store is unreachable or returns empty, the cycle logs
// and returns zero counts without emitting metrics (§4.1, §7 ConfigStoreError).
func (r *Runner) RunCycle(ctx context.Context) (probed int, failed int) {
	inputs, err := r.inputRepo.ListEnabled(ctx)
	if err != nil {
		r.logger.Error("configuration store unreachable, skipping cycle", slog.Any("error", err))
		return 0, 0
	}
	if len(inputs) == 0 {
		r.logger.Debug("no enabled inputs, skipping cycle")
		return 0, 0
	}

	sem := make(chan struct{}, r.workerCount)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, input := range inputs {
		input := input
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			taskCtx, cancel := context.WithTimeout(ctx, r.taskDeadline)
			defer cancel()

			ok := r.runTask(taskCtx, input)

			mu.Lock()
			probed++
			if !ok {
				failed++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return probed, failed
}

// runTask executes a single input's probe, recovering from a panic in a
// handler so one misbehaving probe never brings down the cycle (§4.1's
// isolation guarantee extended defensively to programmer error, not just
// declared error returns).
func (r *Runner) runTask(ctx context.Context, input *models.InputSource) (ok bool) {
	ok = true
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("probe task panicked, recovering",
				slog.String("input_id", input.ID.String()),
				slog.String("input_name", input.Name),
				slog.Any("panic", rec))
			ok = false
		}
	}()

	if ctx.Err() != nil {
		r.logger.Warn("task deadline already exceeded before dispatch",
			slog.String("input_id", input.ID.String()))
		return false
	}

	r.executor.Execute(ctx, input)

	if ctx.Err() != nil {
		r.logger.Warn("probe task cancelled at deadline",
			slog.String("input_id", input.ID.String()),
			slog.String("input_name", input.Name))
		return false
	}
	return true
}
