package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agentsight/internal/check"
	"agentsight/internal/config"
	"agentsight/internal/model"
	"agentsight/internal/store"
)

type fakeStorage struct {
	matchID uuid.NullUUID

	visits        []visitRecord
	fields        map[string]string
	unknownAgents []string

	simulations map[uuid.UUID]store.Simulation
	siteConfigs map[string]store.SiteConfig
}

type visitRecord struct {
	SiteID string
	URL    string
	UA     string
	Agent  uuid.NullUUID
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		fields:      map[string]string{},
		simulations: map[uuid.UUID]store.Simulation{},
		siteConfigs: map[string]store.SiteConfig{},
	}
}

func (f *fakeStorage) Ping(ctx context.Context) error { return nil }

func (f *fakeStorage) MatchAgentID(ctx context.Context, ua string) (uuid.NullUUID, error) {
	return f.matchID, nil
}

func (f *fakeStorage) InsertVisit(ctx context.Context, id uuid.UUID, siteID, url, ua string,
	agentID uuid.NullUUID, summary, rawMeta json.RawMessage, llmsTxt *string) error {
	f.visits = append(f.visits, visitRecord{SiteID: siteID, URL: url, UA: ua, Agent: agentID})
	return nil
}

func (f *fakeStorage) InsertExtractedField(ctx context.Context, visitID uuid.UUID, name, value string) error {
	f.fields[name] = value
	return nil
}

func (f *fakeStorage) UpsertUnknownAgent(ctx context.Context, ua, siteID string) error {
	f.unknownAgents = append(f.unknownAgents, ua)
	return nil
}

func (f *fakeStorage) CreateSimulation(ctx context.Context, id uuid.UUID, siteID, url, agentName string) error {
	f.simulations[id] = store.Simulation{ID: id, SiteID: siteID, URL: url, AgentName: agentName, Status: "queued"}
	return nil
}

func (f *fakeStorage) GetSimulation(ctx context.Context, id uuid.UUID) (store.Simulation, error) {
	sim, ok := f.simulations[id]
	if !ok {
		return store.Simulation{}, sql.ErrNoRows
	}
	return sim, nil
}

func (f *fakeStorage) GetSiteConfig(ctx context.Context, siteID string) (store.SiteConfig, error) {
	cfg, ok := f.siteConfigs[siteID]
	if !ok {
		return store.SiteConfig{}, sql.ErrNoRows
	}
	return cfg, nil
}

type fakeChecker struct {
	report *check.Report
	err    error
}

func (f *fakeChecker) Run(ctx context.Context, url, siteName, agentAPI string, enhanced bool) (*check.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func testApp(st Storage, checker Checker) *fiber.App {
	cfg := &config.Config{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, st, checker, logger).App()
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *gohttp.Response {
	t.Helper()
	req := httptest.NewRequest(gohttp.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *gohttp.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestTelemetry_RequiresSiteID(t *testing.T) {
	app := testApp(newFakeStorage(), nil)

	resp := postJSON(t, app, "/v1/telemetry", `{"url": "https://example.com/"}`)
	if resp.StatusCode != gohttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTelemetry_RequiresURL(t *testing.T) {
	app := testApp(newFakeStorage(), nil)

	resp := postJSON(t, app, "/v1/telemetry", `{"siteId": "demo-site"}`)
	if resp.StatusCode != gohttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTelemetry_StoresNormalizedVisit(t *testing.T) {
	st := newFakeStorage()
	app := testApp(st, nil)

	resp := postJSON(t, app, "/v1/telemetry", `{
		"siteId": "demo-site",
		"url": "https://example.com/page?utm=1#frag",
		"ua": "StrangeBot/2.0",
		"extractedSummary": {"hasJsonLd": true, "og": {"og:title": "Hi"}}
	}`)
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out TelemetryResponse
	decodeBody(t, resp, &out)
	if !out.OK || out.VisitID == "" {
		t.Fatalf("response = %+v", out)
	}

	if len(st.visits) != 1 {
		t.Fatalf("visits = %d", len(st.visits))
	}
	if got := st.visits[0].URL; got != "https://example.com/page" {
		t.Fatalf("url not normalized: %q", got)
	}
	if st.fields["hasJsonLd"] != "true" || st.fields["og.og:title"] != "Hi" {
		t.Fatalf("summary not flattened: %v", st.fields)
	}
	if len(st.unknownAgents) != 1 || st.unknownAgents[0] != "StrangeBot/2.0" {
		t.Fatalf("unmatched agent not recorded: %v", st.unknownAgents)
	}
}

func TestTelemetry_MatchedAgentNotRecordedAsUnknown(t *testing.T) {
	st := newFakeStorage()
	st.matchID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	app := testApp(st, nil)

	resp := postJSON(t, app, "/v1/telemetry", `{
		"siteId": "demo-site",
		"url": "https://example.com/",
		"ua": "GPTBot/1.0"
	}`)
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(st.unknownAgents) != 0 {
		t.Fatalf("matched agent must not become a candidate: %v", st.unknownAgents)
	}
	if !st.visits[0].Agent.Valid {
		t.Fatalf("visit not linked to matched agent")
	}
}

func TestTelemetry_URLFromReferer(t *testing.T) {
	st := newFakeStorage()
	app := testApp(st, nil)

	req := httptest.NewRequest(gohttp.MethodPost, "/v1/telemetry",
		strings.NewReader(`{"siteId": "demo-site"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://example.com/from-referer?x=1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if st.visits[0].URL != "https://example.com/from-referer" {
		t.Fatalf("referer not used: %q", st.visits[0].URL)
	}
}

func TestSimulate_QueuesJob(t *testing.T) {
	st := newFakeStorage()
	app := testApp(st, nil)

	resp := postJSON(t, app, "/v1/simulate", `{
		"siteId": "demo-site",
		"url": "https://example.com/",
		"agentName": "GPTBot"
	}`)
	if resp.StatusCode != gohttp.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var out SimulateResponse
	decodeBody(t, resp, &out)
	jobID, err := uuid.Parse(out.JobID)
	if err != nil {
		t.Fatalf("jobId not a UUID: %q", out.JobID)
	}
	if st.simulations[jobID].Status != "queued" {
		t.Fatalf("job not queued: %+v", st.simulations[jobID])
	}
}

func TestSimulate_MissingParams(t *testing.T) {
	app := testApp(newFakeStorage(), nil)

	resp := postJSON(t, app, "/v1/simulate", `{"siteId": "demo-site"}`)
	if resp.StatusCode != gohttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSimulationStatus(t *testing.T) {
	st := newFakeStorage()
	jobID := uuid.New()
	st.simulations[jobID] = store.Simulation{ID: jobID, Status: "done"}
	app := testApp(st, nil)

	req := httptest.NewRequest(gohttp.MethodGet, "/v1/simulate/"+jobID.String(), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out SimulationStatusResponse
	decodeBody(t, resp, &out)
	if out.Status != "done" {
		t.Fatalf("status = %q", out.Status)
	}

	req = httptest.NewRequest(gohttp.MethodGet, "/v1/simulate/"+uuid.NewString(), nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown job", resp.StatusCode)
	}
}

func TestSiteConfig(t *testing.T) {
	st := newFakeStorage()
	st.siteConfigs["demo-site"] = store.SiteConfig{
		SnippetVersion: sql.NullString{String: "1.0.0", Valid: true},
	}
	app := testApp(st, nil)

	req := httptest.NewRequest(gohttp.MethodGet, "/v1/config/demo-site", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out SiteConfigResponse
	decodeBody(t, resp, &out)
	if out.SnippetVersion != "1.0.0" {
		t.Fatalf("snippet_version = %q", out.SnippetVersion)
	}

	req = httptest.NewRequest(gohttp.MethodGet, "/v1/config/missing-site", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown site", resp.StatusCode)
	}
}

func TestCrawl(t *testing.T) {
	checker := &fakeChecker{report: &check.Report{
		URL:        "https://example.com/",
		Data:       model.StructuredData{Title: "Example"},
		Validation: model.ValidationResult{Confidence: 0.9},
		Snippet:    model.Snippet{HTML: "<script></script>"},
	}}
	app := testApp(newFakeStorage(), checker)

	resp := postJSON(t, app, "/v1/crawl", `{"url": "https://example.com/"}`)
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out CrawlResponse
	decodeBody(t, resp, &out)
	if out.Data.Title != "Example" || out.Validation.Confidence != 0.9 {
		t.Fatalf("report not returned: %+v", out)
	}
}

func TestCrawl_AcquisitionFailure(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection refused")}
	app := testApp(newFakeStorage(), checker)

	resp := postJSON(t, app, "/v1/crawl", `{"url": "https://unreachable.example/"}`)
	if resp.StatusCode != gohttp.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestBeaconServed(t *testing.T) {
	app := testApp(newFakeStorage(), nil)

	req := httptest.NewRequest(gohttp.MethodGet, "/beacon.js", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sendBeacon") {
		t.Fatalf("beacon script body unexpected")
	}
}

func TestHealthz(t *testing.T) {
	app := testApp(newFakeStorage(), nil)

	req := httptest.NewRequest(gohttp.MethodGet, "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
