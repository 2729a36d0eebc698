package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agentsight/internal/model"
	"agentsight/internal/scrapeutil"
)

// EnrichmentClient talks to a Firecrawl-compatible content-extraction
// API. It is always an optional enhancement: callers must treat any
// error as a signal to continue without enrichment.
type EnrichmentClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewEnrichmentClient(apiKey, baseURL string, timeout time.Duration) *EnrichmentClient {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	return &EnrichmentClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type enrichmentRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type enrichmentResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    *enrichmentData `json:"data,omitempty"`
}

type enrichmentData struct {
	Markdown   string                   `json:"markdown,omitempty"`
	HTML       string                   `json:"html,omitempty"`
	Links      []string                 `json:"links,omitempty"`
	Screenshot string                   `json:"screenshot,omitempty"`
	Metadata   map[string]any           `json:"metadata,omitempty"`
	Extract    *model.EnrichmentExtract `json:"extract,omitempty"`
	JSON       map[string]any           `json:"json,omitempty"`
}

// Scrape requests an enriched extraction for the given URL.
func (c *EnrichmentClient) Scrape(ctx context.Context, pageURL string) (*model.EnrichmentPayload, error) {
	body, err := json.Marshal(enrichmentRequest{
		URL:     pageURL,
		Formats: []string{"markdown", "html"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("enrichment read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("enrichment status %d", resp.StatusCode)
	}

	var decoded enrichmentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("enrichment decode: %w", err)
	}
	if !decoded.Success || decoded.Data == nil {
		return nil, fmt.Errorf("enrichment failed: %s", decoded.Error)
	}

	return decoded.Data.toPayload(), nil
}

// toPayload normalizes the wire response into the domain payload. When
// the service returned no explicit extract block, one is synthesized
// from its top-level metadata so downstream consumers see one shape.
func (d *enrichmentData) toPayload() *model.EnrichmentPayload {
	payload := &model.EnrichmentPayload{
		Markdown:   d.Markdown,
		HTML:       d.HTML,
		Links:      d.Links,
		Screenshot: d.Screenshot,
		Extract:    d.Extract,
	}

	if payload.Extract == nil && (len(d.Metadata) > 0 || len(d.JSON) > 0) {
		payload.Extract = &model.EnrichmentExtract{
			Metadata: model.EnrichmentMetadata{
				Title:       scrapeutil.ToString(d.Metadata["title"]),
				Description: scrapeutil.ToString(d.Metadata["description"]),
				PublishedAt: scrapeutil.ToString(d.Metadata["publishedAt"]),
				Author:      scrapeutil.ToString(d.Metadata["author"]),
				Publisher:   scrapeutil.ToString(d.Metadata["publisher"]),
			},
			Schema: d.JSON,
		}
	}

	return payload
}
