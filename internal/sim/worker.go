package sim

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"agentsight/internal/metrics"
	"agentsight/internal/store"
)

// FallbackUserAgent identifies simulated visits when the requested
// agent has no recorded example identity.
const FallbackUserAgent = "Mozilla/5.0 (compatible; AgentSightSim/1.0; +https://agentsight.dev)"

// JobStore is the subset of the store the worker needs.
type JobStore interface {
	GetAgentByName(ctx context.Context, name string) (store.Agent, error)
	MarkSimulationRunning(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteSimulation(ctx context.Context, id uuid.UUID, result json.RawMessage, screenshotURL string) error
	FailSimulation(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Worker executes simulation jobs: it claims a queued job, loads the
// page as the chosen agent would, and records what that agent saw.
// Every claimed job ends in done or failed; none is left running.
type Worker struct {
	store         JobStore
	browser       Browser
	screenshotDir string
	logger        *slog.Logger
}

func NewWorker(st JobStore, browser Browser, screenshotDir string, logger *slog.Logger) *Worker {
	if screenshotDir == "" {
		screenshotDir = "screenshots"
	}
	return &Worker{
		store:         st,
		browser:       browser,
		screenshotDir: screenshotDir,
		logger:        logger,
	}
}

// ExecuteSimulation runs one job. The claim is the atomic queued to
// running transition in the store; losing the claim means another
// worker has the job and this one walks away.
func (w *Worker) ExecuteSimulation(ctx context.Context, job store.Simulation) {
	claimed, err := w.store.MarkSimulationRunning(ctx, job.ID)
	if err != nil {
		w.logger.Error("claiming simulation failed", "job_id", job.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	if err := w.run(ctx, job); err != nil {
		w.logger.Warn("simulation failed", "job_id", job.ID, "url", job.URL, "error", err)
		if ferr := w.store.FailSimulation(ctx, job.ID, err.Error()); ferr != nil {
			w.logger.Error("marking simulation failed errored", "job_id", job.ID, "error", ferr)
		}
		metrics.RecordSimulation("failed")
		return
	}
	metrics.RecordSimulation("done")
}

func (w *Worker) run(ctx context.Context, job store.Simulation) error {
	userAgent := w.resolveUserAgent(ctx, job.AgentName)

	obs, screenshot, err := w.browser.Visit(ctx, job.URL, userAgent)
	if err != nil {
		return fmt.Errorf("visit %s: %w", job.URL, err)
	}

	screenshotPath := ""
	if len(screenshot) > 0 {
		screenshotPath, err = w.saveScreenshot(job.ID, screenshot)
		if err != nil {
			return fmt.Errorf("save screenshot: %w", err)
		}
	}

	result, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}

	if err := w.store.CompleteSimulation(ctx, job.ID, result, screenshotPath); err != nil {
		return fmt.Errorf("complete simulation: %w", err)
	}

	w.logger.Info("simulation done", "job_id", job.ID, "url", job.URL,
		"agent", job.AgentName, "jsonld_blocks", len(obs.VisibleJSONLD))
	return nil
}

// resolveUserAgent picks the agent's recorded example identity, falling
// back to the generic simulator identity when the agent is unknown or
// has none on record.
func (w *Worker) resolveUserAgent(ctx context.Context, agentName string) string {
	agent, err := w.store.GetAgentByName(ctx, agentName)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("agent lookup failed", "agent", agentName, "error", err)
		}
		return FallbackUserAgent
	}
	if agent.ExampleUA.Valid && agent.ExampleUA.String != "" {
		return agent.ExampleUA.String
	}
	return FallbackUserAgent
}

func (w *Worker) saveScreenshot(jobID uuid.UUID, data []byte) (string, error) {
	if err := os.MkdirAll(w.screenshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.screenshotDir, fmt.Sprintf("sim-%s.png", jobID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
