package sim

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"agentsight/internal/model"
	"agentsight/internal/store"
)

type fakeJobStore struct {
	agents map[string]store.Agent

	claimOK  bool
	claimErr error
	claimed  []uuid.UUID

	completed     map[uuid.UUID]json.RawMessage
	screenshotFor map[uuid.UUID]string
	failed        map[uuid.UUID]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		agents:        map[string]store.Agent{},
		claimOK:       true,
		completed:     map[uuid.UUID]json.RawMessage{},
		screenshotFor: map[uuid.UUID]string{},
		failed:        map[uuid.UUID]string{},
	}
}

func (f *fakeJobStore) GetAgentByName(ctx context.Context, name string) (store.Agent, error) {
	a, ok := f.agents[name]
	if !ok {
		return store.Agent{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeJobStore) MarkSimulationRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimOK {
		f.claimed = append(f.claimed, id)
	}
	return f.claimOK, nil
}

func (f *fakeJobStore) CompleteSimulation(ctx context.Context, id uuid.UUID, result json.RawMessage, screenshotURL string) error {
	f.completed[id] = result
	f.screenshotFor[id] = screenshotURL
	return nil
}

func (f *fakeJobStore) FailSimulation(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

type fakeBrowser struct {
	obs        *model.SimulationObservation
	screenshot []byte
	err        error

	lastURL string
	lastUA  string
}

func (f *fakeBrowser) Visit(ctx context.Context, pageURL, userAgent string) (*model.SimulationObservation, []byte, error) {
	f.lastURL = pageURL
	f.lastUA = userAgent
	return f.obs, f.screenshot, f.err
}

func testWorker(st *fakeJobStore, b *fakeBrowser, dir string) *Worker {
	return NewWorker(st, b, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testJob() store.Simulation {
	return store.Simulation{
		ID:        uuid.New(),
		SiteID:    "demo-site",
		URL:       "https://example.com/page",
		AgentName: "GPTBot",
	}
}

func TestExecuteSimulation_Done(t *testing.T) {
	st := newFakeJobStore()
	st.agents["GPTBot"] = store.Agent{
		Name:      "GPTBot",
		ExampleUA: sql.NullString{String: "GPTBot/1.0", Valid: true},
	}
	b := &fakeBrowser{
		obs: &model.SimulationObservation{
			Title:         "Example",
			VisibleJSONLD: []string{`{"@type":"WebSite"}`},
		},
		screenshot: []byte("png-bytes"),
	}

	dir := t.TempDir()
	job := testJob()
	testWorker(st, b, dir).ExecuteSimulation(context.Background(), job)

	if b.lastUA != "GPTBot/1.0" {
		t.Fatalf("user agent = %q, want the agent's example identity", b.lastUA)
	}
	result, ok := st.completed[job.ID]
	if !ok {
		t.Fatalf("job not completed; failed=%v", st.failed)
	}
	var obs model.SimulationObservation
	if err := json.Unmarshal(result, &obs); err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if obs.Title != "Example" || len(obs.VisibleJSONLD) != 1 {
		t.Fatalf("observation not persisted: %+v", obs)
	}

	wantShot := filepath.Join(dir, "sim-"+job.ID.String()+".png")
	if st.screenshotFor[job.ID] != wantShot {
		t.Fatalf("screenshot path = %q, want %q", st.screenshotFor[job.ID], wantShot)
	}
	if _, err := os.Stat(wantShot); err != nil {
		t.Fatalf("screenshot file missing: %v", err)
	}
}

func TestExecuteSimulation_FallbackUserAgent(t *testing.T) {
	st := newFakeJobStore()
	b := &fakeBrowser{obs: &model.SimulationObservation{}}

	testWorker(st, b, t.TempDir()).ExecuteSimulation(context.Background(), testJob())

	if b.lastUA != FallbackUserAgent {
		t.Fatalf("user agent = %q, want fallback", b.lastUA)
	}
}

func TestExecuteSimulation_BrowserFailureMarksFailed(t *testing.T) {
	st := newFakeJobStore()
	b := &fakeBrowser{err: errors.New("navigation timeout")}

	job := testJob()
	testWorker(st, b, t.TempDir()).ExecuteSimulation(context.Background(), job)

	if len(st.completed) != 0 {
		t.Fatalf("failed job must not be completed")
	}
	if msg := st.failed[job.ID]; msg == "" {
		t.Fatalf("job not marked failed")
	}
}

func TestExecuteSimulation_LostClaimWalksAway(t *testing.T) {
	st := newFakeJobStore()
	st.claimOK = false
	b := &fakeBrowser{obs: &model.SimulationObservation{}}

	testWorker(st, b, t.TempDir()).ExecuteSimulation(context.Background(), testJob())

	if b.lastURL != "" {
		t.Fatalf("browser must not run for a job claimed elsewhere")
	}
	if len(st.completed) != 0 || len(st.failed) != 0 {
		t.Fatalf("no terminal transition expected without a claim")
	}
}

func TestExecuteSimulation_ClaimErrorNoTransition(t *testing.T) {
	st := newFakeJobStore()
	st.claimErr = errors.New("db down")
	b := &fakeBrowser{obs: &model.SimulationObservation{}}

	testWorker(st, b, t.TempDir()).ExecuteSimulation(context.Background(), testJob())

	if len(st.completed) != 0 || len(st.failed) != 0 {
		t.Fatalf("no transition expected when the claim errors")
	}
}
