package model

import "time"

// ScrapeResult aggregates whichever acquisition strategies succeeded for
// one URL. DynamicHTML is empty when rendering was skipped or failed;
// Enrichment is nil when the enrichment service was unavailable.
type ScrapeResult struct {
	URL         string             `json:"url"`
	StaticHTML  string             `json:"staticHtml"`
	DynamicHTML string             `json:"dynamicHtml,omitempty"`
	Enrichment  *EnrichmentPayload `json:"enrichment,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// EnhancedScrapeResult folds enrichment-derived fields into the
// traditional scrape output so callers get the richest view available.
type EnhancedScrapeResult struct {
	ScrapeResult
	Markdown   string         `json:"markdown,omitempty"`
	Links      []string       `json:"links,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	Schema     map[string]any `json:"extractedSchema,omitempty"`
}

// EnrichmentPayload is the structured output of the external
// content-extraction service. It is always an optional enhancement,
// never a required input.
type EnrichmentPayload struct {
	Markdown   string             `json:"markdown,omitempty"`
	HTML       string             `json:"html,omitempty"`
	Links      []string           `json:"links,omitempty"`
	Screenshot string             `json:"screenshot,omitempty"`
	Extract    *EnrichmentExtract `json:"extract,omitempty"`
}

// EnrichmentExtract carries the service's own extraction attempt.
type EnrichmentExtract struct {
	Metadata EnrichmentMetadata `json:"metadata"`
	Schema   map[string]any     `json:"schema,omitempty"`
	Offers   []any              `json:"offers,omitempty"`
	FAQs     []any              `json:"faqs,omitempty"`
}

type EnrichmentMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Author      string `json:"author,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
}

// Headings lists h1/h2 text in document order.
type Headings struct {
	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
}

// CTA is a call-to-action link or button found on the page.
type CTA struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// StructuredData is the normalized semantic record extracted from one
// scrape. Every field is optional; absence means not-found, not an error.
// Extra holds additional keys merged from heterogeneous sources so the
// known fields stay explicitly typed.
type StructuredData struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Canonical   string            `json:"canonical,omitempty"`
	OpenGraph   map[string]string `json:"opengraph,omitempty"`
	Twitter     map[string]string `json:"twitter,omitempty"`
	SchemaLD    map[string]any    `json:"schemaLd,omitempty"`
	Offers      []any             `json:"offers,omitempty"`
	FAQs        []any             `json:"faqs,omitempty"`
	Headings    *Headings         `json:"headings,omitempty"`
	CTAs        []CTA             `json:"ctas,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
}

// ValidationResult is a deterministic confidence assessment of how well
// a page exposes agent-legible signals.
type ValidationResult struct {
	Confidence           float64  `json:"confidence"`
	MissingElements      []string `json:"missingElements"`
	StaticSize           int      `json:"staticSize"`
	DynamicSize          int      `json:"dynamicSize,omitempty"`
	DOMNodeCount         int      `json:"domNodeCount,omitempty"`
	KeywordCoverage      float64  `json:"keywordCoverage"`
	SchemaPresence       bool     `json:"schemaPresence"`
	MetaTagsCompleteness float64  `json:"metaTagsCompleteness"`
}

// Snippet is the emittable agent-facing document in both its serialized
// and structured forms. Callers may persist either.
type Snippet struct {
	HTML string         `json:"html"`
	JSON map[string]any `json:"json"`
}

// MetaTag is one meta element as observed by a simulated agent.
type MetaTag struct {
	Name     string `json:"name"`
	Property string `json:"property"`
	Content  string `json:"content"`
}

// SimulationObservation is exactly what a simulated agent saw on a page.
type SimulationObservation struct {
	VisibleJSONLD []string  `json:"visible_jsonld"`
	Meta          []MetaTag `json:"meta"`
	Title         string    `json:"title"`
	H1            string    `json:"h1,omitempty"`
}
