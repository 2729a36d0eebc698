package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/temoto/robotstxt"

	"agentsight/internal/config"
	"agentsight/internal/metrics"
	"agentsight/internal/model"
)

// DefaultUserAgent is the fixed identifying header sent on every
// static fetch.
const DefaultUserAgent = "AgentSight/1.0 (+https://agentsight.dev)"

// DefaultDynamicThreshold is the static-markup size below which a
// dynamic render is attempted.
const DefaultDynamicThreshold = 50000

// Enricher is the optional content-extraction strategy.
type Enricher interface {
	Scrape(ctx context.Context, pageURL string) (*model.EnrichmentPayload, error)
}

// Acquirer fetches a page through up to three independent strategies
// (enrichment API, static HTTP, headless render) and merges whichever
// succeeded into one ScrapeResult. Strategies run sequentially because
// the dynamic-render decision depends on the static fetch's size.
type Acquirer struct {
	userAgent        string
	dynamicThreshold int
	respectRobots    bool

	client   *http.Client
	enricher Enricher
	renderer Renderer
	logger   *slog.Logger
}

// New builds an Acquirer from configuration. Enrichment is disabled
// without an API key; dynamic rendering is disabled when rod is off.
func New(cfg *config.Config, logger *slog.Logger) *Acquirer {
	timeout := time.Duration(cfg.Scraper.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	userAgent := cfg.Scraper.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	threshold := cfg.Scraper.DynamicThresholdBytes
	if threshold <= 0 {
		threshold = DefaultDynamicThreshold
	}

	a := &Acquirer{
		userAgent:        userAgent,
		dynamicThreshold: threshold,
		respectRobots:    cfg.Robots.Respect,
		client:           &http.Client{Timeout: timeout},
		logger:           logger,
	}

	if cfg.Enrichment.APIKey != "" {
		enrichTimeout := time.Duration(cfg.Enrichment.TimeoutMs) * time.Millisecond
		if enrichTimeout <= 0 {
			enrichTimeout = timeout
		}
		a.enricher = NewEnrichmentClient(cfg.Enrichment.APIKey, cfg.Enrichment.BaseURL, enrichTimeout)
	}
	if cfg.Rod.Enabled {
		a.renderer = NewRodRenderer(timeout)
	}

	return a
}

// NeedsDynamic decides whether a headless render is warranted. Small
// static payloads usually mean a client-rendered shell; large ones are
// assumed to be server-rendered. A heuristic, not a guarantee.
func NeedsDynamic(staticSize, threshold int) bool {
	return staticSize < threshold
}

// Acquire fetches the page. Enrichment failure is non-fatal; static
// fetch failure fails the whole acquisition since there is no content
// to return; dynamic-render failure is logged and the static markup
// stands alone.
func (a *Acquirer) Acquire(ctx context.Context, pageURL string) (*model.ScrapeResult, error) {
	var enrichment *model.EnrichmentPayload
	if a.enricher != nil {
		payload, err := a.enricher.Scrape(ctx, pageURL)
		metrics.RecordAcquisition("enrichment", err == nil)
		if err != nil {
			a.logger.Warn("enrichment failed, continuing with traditional methods",
				"url", pageURL, "error", err)
		} else {
			enrichment = payload
		}
	}

	staticHTML, err := a.fetchStatic(ctx, pageURL)
	metrics.RecordAcquisition("static", err == nil)
	if err != nil {
		return nil, fmt.Errorf("static fetch for %s: %w", pageURL, err)
	}

	var dynamicHTML string
	if a.renderer != nil && NeedsDynamic(len(staticHTML), a.dynamicThreshold) {
		rendered, err := a.renderer.Render(ctx, pageURL)
		metrics.RecordAcquisition("dynamic", err == nil)
		if err != nil {
			a.logger.Warn("dynamic render failed, using static markup only",
				"url", pageURL, "error", err)
		} else {
			dynamicHTML = rendered
		}
	}

	return &model.ScrapeResult{
		URL:         pageURL,
		StaticHTML:  staticHTML,
		DynamicHTML: dynamicHTML,
		Enrichment:  enrichment,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// AcquireEnhanced folds enrichment-derived markdown, links, screenshot
// and schema into the result alongside the traditional fields. When the
// enrichment service supplied no markdown, a local conversion of the
// static markup fills the gap.
func (a *Acquirer) AcquireEnhanced(ctx context.Context, pageURL string) (*model.EnhancedScrapeResult, error) {
	res, err := a.Acquire(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	enhanced := &model.EnhancedScrapeResult{ScrapeResult: *res}
	if res.Enrichment != nil {
		enhanced.Markdown = res.Enrichment.Markdown
		enhanced.Links = res.Enrichment.Links
		enhanced.Screenshot = res.Enrichment.Screenshot
		if res.Enrichment.Extract != nil {
			enhanced.Schema = res.Enrichment.Extract.Schema
		}
	}

	if enhanced.Markdown == "" {
		enhanced.Markdown = a.markdownFallback(pageURL, res.StaticHTML)
	}

	return enhanced, nil
}

func (a *Acquirer) markdownFallback(pageURL, markup string) string {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}

	converter := htmlmd.NewConverter(host, true, nil)
	markdown, err := converter.ConvertString(markup)
	if err != nil {
		a.logger.Warn("markdown conversion failed", "url", pageURL, "error", err)
		return ""
	}
	return markdown
}

func (a *Acquirer) fetchStatic(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	if a.respectRobots {
		if allowed := a.robotsAllowed(ctx, u); !allowed {
			return "", fmt.Errorf("disallowed by robots.txt")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// robotsAllowed checks the site's robots.txt for the configured user
// agent. An unreachable or unparseable robots.txt allows the fetch,
// matching crawler convention.
func (a *Acquirer) robotsAllowed(ctx context.Context, u *url.URL) bool {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return true
	}

	agentToken := a.userAgent
	if idx := strings.Index(agentToken, "/"); idx > 0 {
		agentToken = agentToken[:idx]
	}
	return robots.FindGroup(agentToken).Test(u.Path)
}
