package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agentsight/internal/metrics"
)

// Registry is the subset of the store the syncer writes to.
type Registry interface {
	UpsertAgent(ctx context.Context, name, pattern, exampleUA, source string) error
}

// RemoteEntry is one agent definition in the remote registry feed.
type RemoteEntry struct {
	Name      string `json:"name"`
	Pattern   string `json:"pattern"`
	ExampleUA string `json:"example_ua"`
}

// Syncer periodically pulls the remote agent registry and upserts its
// entries into the local one. The upsert keys on name, so repeated
// syncs of the same feed converge instead of duplicating.
type Syncer struct {
	RemoteURL string
	Interval  time.Duration
	Registry  Registry
	Client    *http.Client
	Logger    *slog.Logger
}

func NewSyncer(remoteURL string, interval time.Duration, registry Registry, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Syncer{
		RemoteURL: remoteURL,
		Interval:  interval,
		Registry:  registry,
		Client:    &http.Client{Timeout: 30 * time.Second},
		Logger:    logger,
	}
}

// Start runs one sync immediately and then on every tick until the
// context ends. With no remote configured it logs and returns; the
// builtin seed agents keep the registry functional.
func (s *Syncer) Start(ctx context.Context) {
	if s.RemoteURL == "" {
		s.Logger.Warn("agent registry sync disabled, no remote URL configured")
		return
	}

	if err := s.SyncOnce(ctx); err != nil {
		s.Logger.Error("agent registry sync failed", "error", err)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.Logger.Error("agent registry sync failed", "error", err)
			}
		}
	}
}

// SyncOnce fetches the remote feed and upserts every well-formed entry.
// Entries missing a name or pattern are skipped with a warning rather
// than aborting the batch.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.RemoteURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch remote registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote registry status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read remote registry: %w", err)
	}

	var entries []RemoteEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return fmt.Errorf("decode remote registry: %w", err)
	}

	synced := 0
	for _, e := range entries {
		if e.Name == "" || e.Pattern == "" {
			s.Logger.Warn("skipping malformed registry entry", "name", e.Name)
			continue
		}
		if err := s.Registry.UpsertAgent(ctx, e.Name, e.Pattern, e.ExampleUA, "remote"); err != nil {
			metrics.RecordAgentSync(synced, true)
			return fmt.Errorf("upsert agent %s: %w", e.Name, err)
		}
		synced++
	}

	metrics.RecordAgentSync(synced, false)
	s.Logger.Info("agent registry synced", "entries", synced, "skipped", len(entries)-synced)
	return nil
}
