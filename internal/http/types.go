package http

import "agentsight/internal/model"

// ErrorResponse is the error envelope for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TelemetryRequest is the beacon payload reporting one page visit.
type TelemetryRequest struct {
	SiteID           string         `json:"siteId"`
	URL              string         `json:"url"`
	UA               string         `json:"ua"`
	ExtractedSummary map[string]any `json:"extractedSummary,omitempty"`
	LlmsTxt          string         `json:"llmsTxt,omitempty"`
	RawMeta          map[string]any `json:"rawMeta,omitempty"`
}

// TelemetryResponse acknowledges a stored visit.
type TelemetryResponse struct {
	OK      bool   `json:"ok"`
	VisitID string `json:"visitId"`
}

// SimulateRequest queues one agent simulation.
type SimulateRequest struct {
	SiteID    string `json:"siteId"`
	URL       string `json:"url"`
	AgentName string `json:"agentName"`
}

// SimulateResponse is returned on job acceptance.
type SimulateResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// SimulationStatusResponse reports a job's current state and, once
// terminal, its result.
type SimulationStatusResponse struct {
	JobID         string `json:"jobId"`
	Status        string `json:"status"`
	Result        any    `json:"result,omitempty"`
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
}

// SiteConfigResponse mirrors the stored site configuration document.
type SiteConfigResponse struct {
	ConfigJSON     any    `json:"config_json"`
	SnippetVersion string `json:"snippet_version,omitempty"`
}

// CrawlRequest asks for an on-demand readiness check of one URL.
// AgentAPI, when set, is advertised in the generated snippet's
// self-describing block.
type CrawlRequest struct {
	URL      string `json:"url"`
	SiteName string `json:"siteName,omitempty"`
	AgentAPI string `json:"agentAPI,omitempty"`
	Enhanced bool   `json:"enhanced,omitempty"`
}

// CrawlResponse bundles the full readiness check output: what was
// extracted, how confident the validation is, and a paste-ready snippet.
type CrawlResponse struct {
	URL        string                 `json:"url"`
	Data       model.StructuredData   `json:"data"`
	Validation model.ValidationResult `json:"validation"`
	Snippet    model.Snippet          `json:"snippet"`
}
