package jobs

import (
	"context"
	"log/slog"
	"time"

	"agentsight/internal/config"
	"agentsight/internal/store"
)

// SimulationExecutor executes a single simulation job end to end,
// including all state transitions.
type SimulationExecutor interface {
	ExecuteSimulation(ctx context.Context, job store.Simulation)
}

// Queue is the subset of the store the runner polls.
type Queue interface {
	ListQueuedSimulations(ctx context.Context, limit int32) ([]store.Simulation, error)
}

// Runner polls the simulations table and dispatches queued jobs to the
// executor. It encapsulates concurrency limits and polling intervals;
// claiming a job (the queued to running transition) is the executor's
// responsibility so that two runners sharing a database cannot run the
// same job twice.
type Runner struct {
	cfg      *config.Config
	queue    Queue
	executor SimulationExecutor
	logger   *slog.Logger
}

func NewRunner(cfg *config.Config, queue Queue, executor SimulationExecutor, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		queue:    queue,
		executor: executor,
		logger:   logger,
	}
}

// Start launches the worker loop in the current goroutine. Callers
// typically run this in its own goroutine and keep the process alive.
func (r *Runner) Start(ctx context.Context) {
	pollInterval := time.Duration(r.cfg.Worker.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	maxJobs := r.cfg.Worker.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 4
	}

	sem := make(chan struct{}, maxJobs)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Determine how many new jobs we can start based on current concurrency.
		capacity := maxJobs - len(sem)
		if capacity <= 0 {
			continue
		}

		sims, err := r.queue.ListQueuedSimulations(ctx, int32(capacity))
		if err != nil {
			r.logger.Error("polling simulation queue failed", "error", err)
			continue
		}

		for _, sim := range sims {
			sim := sim
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				r.executor.ExecuteSimulation(ctx, sim)
			}()
		}
	}
}
