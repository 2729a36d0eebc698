package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"
)

// Store wraps access to the database via a shared *sql.DB with pooling.
// No explicit transactions are used: each statement commits on its own.
// Telemetry writes are deliberately non-atomic (visits are best-effort
// diagnostics, not ledgers).
type Store struct {
	DB *sql.DB
}

func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// Ping verifies database connectivity, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Agent is one known automated visitor in the registry.
type Agent struct {
	ID        uuid.UUID
	Name      string
	Pattern   string
	ExampleUA sql.NullString
	Source    string
	LastSeen  sql.NullTime
	UpdatedAt time.Time
}

// Simulation is one queued/running/terminal simulation job row.
type Simulation struct {
	ID            uuid.UUID
	SiteID        string
	URL           string
	AgentName     string
	Status        string
	Result        pqtype.NullRawMessage
	ScreenshotURL sql.NullString
	CreatedAt     time.Time
	StartedAt     sql.NullTime
	FinishedAt    sql.NullTime
}

// SiteConfig is the stored configuration document for one site.
type SiteConfig struct {
	ConfigJSON     pqtype.NullRawMessage
	SnippetVersion sql.NullString
}

// MatchAgentID resolves a user-agent string against the registry's
// patterns. Matching is case-insensitive regular-expression containment
// against the stored pattern; the first match wins.
func (s *Store) MatchAgentID(ctx context.Context, ua string) (uuid.NullUUID, error) {
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM agents WHERE $1 ~* pattern ORDER BY created_at LIMIT 1`, ua,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.NullUUID{}, nil
	}
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// GetAgentByName fetches one agent by its unique name.
func (s *Store) GetAgentByName(ctx context.Context, name string) (Agent, error) {
	var a Agent
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, pattern, example_ua, source, last_seen, updated_at
		 FROM agents WHERE name = $1`, name,
	).Scan(&a.ID, &a.Name, &a.Pattern, &a.ExampleUA, &a.Source, &a.LastSeen, &a.UpdatedAt)
	return a, err
}

// UpsertAgent inserts or updates an agent keyed by name, overwriting
// pattern and example identity and touching the update timestamp.
// Idempotent by design: syncing the same entry twice is a no-op.
func (s *Store) UpsertAgent(ctx context.Context, name, pattern, exampleUA, source string) error {
	var ua sql.NullString
	if exampleUA != "" {
		ua = sql.NullString{String: exampleUA, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO agents (name, pattern, example_ua, source, last_seen)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (name)
		 DO UPDATE SET
		   pattern = EXCLUDED.pattern,
		   example_ua = EXCLUDED.example_ua,
		   updated_at = now()`,
		name, pattern, ua, source)
	return err
}

// InsertVisit records one real-world page view report. Append-only.
func (s *Store) InsertVisit(ctx context.Context, id uuid.UUID, siteID, url, ua string,
	agentID uuid.NullUUID, summary, rawMeta json.RawMessage, llmsTxt *string) error {

	var summaryVal, rawMetaVal pqtype.NullRawMessage
	if summary != nil {
		summaryVal = pqtype.NullRawMessage{RawMessage: summary, Valid: true}
	}
	if rawMeta != nil {
		rawMetaVal = pqtype.NullRawMessage{RawMessage: rawMeta, Valid: true}
	}
	var llms sql.NullString
	if llmsTxt != nil {
		llms = sql.NullString{String: *llmsTxt, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO visits (id, site_id, url, ua, agent_id, extracted_summary, llms_txt, raw_meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, siteID, url, ua, agentID, summaryVal, llms, rawMetaVal)
	return err
}

// InsertExtractedField records one flattened leaf field of a visit's
// summary.
func (s *Store) InsertExtractedField(ctx context.Context, visitID uuid.UUID, name, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO extracted_fields (visit_id, field_name, field_value) VALUES ($1, $2, $3)`,
		visitID, name, value)
	return err
}

// UpsertUnknownAgent records a sighting of a user-agent string with no
// registry match, incrementing its count on repeats. This is how the
// registry discovers new agents worth adding.
func (s *Store) UpsertUnknownAgent(ctx context.Context, ua, siteID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO unknown_agent_candidates (ua, sample_site, count, first_seen, last_seen)
		 VALUES ($1, $2, 1, now(), now())
		 ON CONFLICT (ua) DO UPDATE SET
		   count = unknown_agent_candidates.count + 1,
		   last_seen = now()`,
		ua, siteID)
	return err
}

// CreateSimulation inserts a new simulation job in the queued state.
func (s *Store) CreateSimulation(ctx context.Context, id uuid.UUID, siteID, url, agentName string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO simulations (id, site_id, url, agent_name, status)
		 VALUES ($1, $2, $3, $4, 'queued')`,
		id, siteID, url, agentName)
	return err
}

// GetSimulation fetches one simulation job by id.
func (s *Store) GetSimulation(ctx context.Context, id uuid.UUID) (Simulation, error) {
	var sim Simulation
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, site_id, url, agent_name, status, result, screenshot_url,
		        created_at, started_at, finished_at
		 FROM simulations WHERE id = $1`, id,
	).Scan(&sim.ID, &sim.SiteID, &sim.URL, &sim.AgentName, &sim.Status, &sim.Result,
		&sim.ScreenshotURL, &sim.CreatedAt, &sim.StartedAt, &sim.FinishedAt)
	return sim, err
}

// ListQueuedSimulations returns up to limit jobs still waiting to run,
// oldest first.
func (s *Store) ListQueuedSimulations(ctx context.Context, limit int32) ([]Simulation, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, site_id, url, agent_name, status, result, screenshot_url,
		        created_at, started_at, finished_at
		 FROM simulations WHERE status = 'queued' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sims []Simulation
	for rows.Next() {
		var sim Simulation
		if err := rows.Scan(&sim.ID, &sim.SiteID, &sim.URL, &sim.AgentName, &sim.Status,
			&sim.Result, &sim.ScreenshotURL, &sim.CreatedAt, &sim.StartedAt, &sim.FinishedAt); err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, rows.Err()
}

// MarkSimulationRunning transitions a job from queued to running. The
// status guard keeps the transition monotonic: a job already claimed by
// another worker reports false and must not be run again.
func (s *Store) MarkSimulationRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE simulations SET status = 'running', started_at = now()
		 WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteSimulation stores the observation bundle and screenshot
// location, marking the job done.
func (s *Store) CompleteSimulation(ctx context.Context, id uuid.UUID, result json.RawMessage, screenshotURL string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE simulations SET status = 'done', result = $2, screenshot_url = $3, finished_at = now()
		 WHERE id = $1`,
		id, pqtype.NullRawMessage{RawMessage: result, Valid: true},
		sql.NullString{String: screenshotURL, Valid: screenshotURL != ""})
	return err
}

// FailSimulation stores the error as the result payload and marks the
// job failed. Jobs are never left in the running state.
func (s *Store) FailSimulation(ctx context.Context, id uuid.UUID, errMsg string) error {
	payload, err := json.Marshal(map[string]string{"error": errMsg})
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE simulations SET status = 'failed', result = $2, finished_at = now()
		 WHERE id = $1`,
		id, pqtype.NullRawMessage{RawMessage: payload, Valid: true})
	return err
}

// GetSiteConfig fetches a site's stored configuration document and
// snippet-version marker.
func (s *Store) GetSiteConfig(ctx context.Context, siteID string) (SiteConfig, error) {
	var cfg SiteConfig
	err := s.DB.QueryRowContext(ctx,
		`SELECT config_json, snippet_version FROM sites WHERE site_id = $1`, siteID,
	).Scan(&cfg.ConfigJSON, &cfg.SnippetVersion)
	return cfg, err
}
