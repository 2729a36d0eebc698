package check

import (
	"context"
	"log/slog"

	"agentsight/internal/acquire"
	"agentsight/internal/extract"
	"agentsight/internal/metrics"
	"agentsight/internal/model"
	"agentsight/internal/snippet"
	"agentsight/internal/validate"
)

// Report is the full output of one readiness check.
type Report struct {
	URL        string
	Data       model.StructuredData
	Validation model.ValidationResult
	Snippet    model.Snippet
}

// Pipeline runs the end-to-end readiness check: acquire the page,
// extract its structured data, score it, and generate the recommended
// snippet.
type Pipeline struct {
	acquirer *acquire.Acquirer
	agentAPI string
	logger   *slog.Logger
}

func NewPipeline(acquirer *acquire.Acquirer, agentAPI string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		acquirer: acquirer,
		agentAPI: agentAPI,
		logger:   logger,
	}
}

// Run checks one URL. Extraction prefers the rendered markup when a
// dynamic render happened, since that is what a JS-capable agent sees.
// An empty agentAPI falls back to the pipeline's configured endpoint.
func (p *Pipeline) Run(ctx context.Context, pageURL, siteName, agentAPI string, enhanced bool) (*Report, error) {
	if agentAPI == "" {
		agentAPI = p.agentAPI
	}
	opts := snippet.Options{AgentAPI: agentAPI, SiteName: siteName}

	if enhanced {
		res, err := p.acquirer.AcquireEnhanced(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		data := extract.Extract(bestMarkup(&res.ScrapeResult), res.Enrichment)
		validation := validate.Validate(pageURL, res.StaticHTML, res.DynamicHTML)
		metrics.RecordValidation(validation.Confidence)

		return &Report{
			URL:        pageURL,
			Data:       data,
			Validation: validation,
			Snippet:    snippet.GenerateEnhanced(data, res.Enrichment, opts),
		}, nil
	}

	res, err := p.acquirer.Acquire(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	data := extract.Extract(bestMarkup(res), res.Enrichment)
	validation := validate.Validate(pageURL, res.StaticHTML, res.DynamicHTML)
	metrics.RecordValidation(validation.Confidence)

	p.logger.Info("readiness check finished", "url", pageURL,
		"confidence", validation.Confidence, "missing", validation.MissingElements)

	return &Report{
		URL:        pageURL,
		Data:       data,
		Validation: validation,
		Snippet:    snippet.Generate(data, opts),
	}, nil
}

func bestMarkup(res *model.ScrapeResult) string {
	if res.DynamicHTML != "" {
		return res.DynamicHTML
	}
	return res.StaticHTML
}
