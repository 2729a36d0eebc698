package snippet

import (
	"encoding/json"
	"time"

	"agentsight/internal/model"
)

// schemaContext is the fixed context identifier every generated
// document is seeded with.
const schemaContext = "https://schema.org"

// snippetVersion tags the self-describing block in enhanced snippets.
const snippetVersion = "1.0.0"

// Options configures snippet generation.
type Options struct {
	// AgentAPI is an optional endpoint advertised to agents.
	AgentAPI string
	// SiteName is only honored by the enhanced variant.
	SiteName string
}

// Generate projects StructuredData into an embeddable JSON-LD document.
//
// Precedence is the opposite of extraction: the page's own declared
// JSON-LD is the base and wins; extracted fields only fill gaps. A
// page's declared schema is considered more authoritative than
// heuristic extraction.
func Generate(data model.StructuredData, opts Options) model.Snippet {
	jsonLD := baseDocument(data)

	if opts.AgentAPI != "" {
		jsonLD["agentAPI"] = opts.AgentAPI
	}

	return render(jsonLD)
}

// GenerateEnhanced produces a richer snippet: it forces a WebSite type
// designation, always carries headings and calls-to-action when
// present, copies publication metadata from the enrichment payload, and
// appends a fixed-shape self-describing block with confidence
// indicators.
func GenerateEnhanced(data model.StructuredData, enrichment *model.EnrichmentPayload, opts Options) model.Snippet {
	jsonLD := map[string]any{
		"@context": schemaContext,
		"@type":    "WebSite",
	}
	for k, v := range data.SchemaLD {
		jsonLD[k] = v
	}
	// Re-seed the context in case the page's schema overrode it.
	jsonLD["@context"] = schemaContext

	fillFromData(jsonLD, data)

	if data.Headings != nil && (len(data.Headings.H1) > 0 || len(data.Headings.H2) > 0) {
		jsonLD["headings"] = data.Headings
	}
	if len(data.CTAs) > 0 {
		jsonLD["ctas"] = data.CTAs
	}

	if enrichment != nil && enrichment.Extract != nil {
		meta := enrichment.Extract.Metadata
		if meta.PublishedAt != "" {
			jsonLD["datePublished"] = meta.PublishedAt
		}
		if meta.Author != "" {
			jsonLD["author"] = meta.Author
		}
		if meta.Publisher != "" {
			jsonLD["publisher"] = meta.Publisher
		}
	}

	if opts.SiteName != "" {
		jsonLD["siteName"] = opts.SiteName
	}
	if opts.AgentAPI != "" {
		jsonLD["agentAPI"] = opts.AgentAPI
	}

	jsonLD["agentsight"] = map[string]any{
		"version":     snippetVersion,
		"extractedAt": time.Now().UTC().Format(time.RFC3339),
		"confidenceIndicators": map[string]bool{
			"hasTitle":       data.Title != "",
			"hasDescription": data.Description != "",
			"hasSchema":      data.SchemaLD != nil,
			"hasHeadings":    data.Headings != nil && (len(data.Headings.H1) > 0 || len(data.Headings.H2) > 0),
			"hasCTAs":        len(data.CTAs) > 0,
		},
	}

	return render(jsonLD)
}

func baseDocument(data model.StructuredData) map[string]any {
	jsonLD := map[string]any{
		"@context": schemaContext,
	}
	for k, v := range data.SchemaLD {
		jsonLD[k] = v
	}
	jsonLD["@context"] = schemaContext

	fillFromData(jsonLD, data)
	return jsonLD
}

// fillFromData sets name/description/url/offers/faqs from extracted
// data only where the JSON-LD base has no value of its own.
func fillFromData(jsonLD map[string]any, data model.StructuredData) {
	if data.Title != "" {
		if _, ok := jsonLD["name"]; !ok {
			jsonLD["name"] = data.Title
		}
	}
	if data.Description != "" {
		if _, ok := jsonLD["description"]; !ok {
			jsonLD["description"] = data.Description
		}
	}
	if data.Canonical != "" {
		if _, ok := jsonLD["url"]; !ok {
			jsonLD["url"] = data.Canonical
		}
	}
	if data.Offers != nil {
		if _, ok := jsonLD["offers"]; !ok {
			jsonLD["offers"] = data.Offers
		}
	}
	if data.FAQs != nil {
		if _, ok := jsonLD["faqs"]; !ok {
			jsonLD["faqs"] = data.FAQs
		}
	}
}

// render serializes the document into a trimmed, pretty-printed script
// block and returns both forms so callers can persist either.
func render(jsonLD map[string]any) model.Snippet {
	body, err := json.MarshalIndent(jsonLD, "", "  ")
	if err != nil {
		// Maps of JSON-decoded values always marshal; guard anyway.
		body = []byte("{}")
	}

	html := `<script type="application/ld+json" id="agentsight-schema">` + "\n" +
		string(body) + "\n</script>"

	return model.Snippet{HTML: html, JSON: jsonLD}
}
