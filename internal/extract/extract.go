package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"agentsight/internal/model"
	"agentsight/internal/scrapeutil"
)

// ctaSelectors is the fixed, ordered list of selector patterns scanned
// for calls-to-action.
var ctaSelectors = []string{
	`a[href*="signup"]`,
	`a[href*="register"]`,
	`a[href*="start"]`,
	`a[href*="get"]`,
	`a[href*="try"]`,
	`a.btn`,
	`button[type="submit"]`,
	`.cta-button`,
	`.btn-primary`,
}

// maxCTAs caps the calls-to-action list to avoid noise.
const maxCTAs = 5

// Extract parses raw markup (plus any enrichment payload) into a
// normalized StructuredData record. Enrichment fields are applied first
// as a blind baseline; markup-sourced fields are then read
// unconditionally and overwrite whatever the baseline held. Markup is
// considered more current than a possibly-stale enrichment snapshot.
//
// Extraction never fails for missing data: every field is optional and
// absence is meaningful. Only malformed JSON-LD is caught internally.
func Extract(markup string, enrichment *model.EnrichmentPayload) model.StructuredData {
	var data model.StructuredData

	if enrichment != nil && enrichment.Extract != nil {
		applyEnrichment(&data, enrichment.Extract)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// goquery only fails on reader errors; a string reader never
		// does, but keep the enrichment baseline if it somehow happens.
		slog.Warn("extract: markup parse failed", "error", err)
		return data
	}

	data.Title = strings.TrimSpace(doc.Find("title").First().Text())
	data.Description = doc.Find(`meta[name="description"]`).AttrOr("content", "")
	data.Canonical = doc.Find(`link[rel="canonical"]`).AttrOr("href", "")

	data.OpenGraph = collectMetaPrefix(doc, "property", "og:")
	data.Twitter = collectMetaPrefix(doc, "name", "twitter:")

	data.SchemaLD = extractJSONLD(doc)

	data.Headings = &model.Headings{
		H1: headingTexts(doc, "h1"),
		H2: headingTexts(doc, "h2"),
	}

	data.CTAs = extractCTAs(doc)

	// Offers and FAQs come only from the page's declared schema (or the
	// enrichment baseline when the page declares none); they are never
	// fabricated from page text.
	if data.SchemaLD != nil {
		data.Offers = offersFromSchema(data.SchemaLD)
		data.FAQs = faqsFromSchema(data.SchemaLD)
	}

	return data
}

func applyEnrichment(data *model.StructuredData, ext *model.EnrichmentExtract) {
	if ext.Metadata.Title != "" {
		data.Title = ext.Metadata.Title
	}
	if ext.Metadata.Description != "" {
		data.Description = ext.Metadata.Description
	}
	if ext.Schema != nil {
		data.SchemaLD = ext.Schema
	}
	if ext.Offers != nil {
		data.Offers = ext.Offers
	}
	if ext.FAQs != nil {
		data.FAQs = ext.FAQs
	}
}

// collectMetaPrefix gathers meta tags whose attribute starts with the
// given prefix into a map keyed by the suffix. Returns nil when no tags
// match so the field is omitted rather than empty.
func collectMetaPrefix(doc *goquery.Document, attr, prefix string) map[string]string {
	out := map[string]string{}
	doc.Find(`meta[` + attr + `^="` + prefix + `"]`).Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr(attr)
		content, ok := sel.Attr("content")
		if key == "" || !ok || content == "" {
			return
		}
		out[strings.TrimPrefix(key, prefix)] = content
	})

	if len(out) == 0 {
		return nil
	}
	return out
}

// extractJSONLD parses the first structured-data script tag. Malformed
// JSON is logged and treated as absence rather than an error.
func extractJSONLD(doc *goquery.Document) map[string]any {
	script := doc.Find(`script[type="application/ld+json"]`).First()
	if script.Length() == 0 {
		return nil
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &schema); err != nil {
		slog.Warn("extract: failed to parse JSON-LD", "error", err)
		return nil
	}
	return schema
}

func headingTexts(doc *goquery.Document, tag string) []string {
	var out []string
	doc.Find(tag).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, strings.TrimSpace(sel.Text()))
	})
	return out
}

// extractCTAs scans the fixed selector list in order, deduplicating by
// exact text across all selectors (first occurrence wins) and capping
// the result at maxCTAs.
func extractCTAs(doc *goquery.Document) []model.CTA {
	var ctas []model.CTA
	seen := make(map[string]struct{})

	for _, selector := range ctaSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			ctas = append(ctas, model.CTA{
				Text: text,
				URL:  sel.AttrOr("href", ""),
			})
		})
	}

	if len(ctas) > maxCTAs {
		ctas = ctas[:maxCTAs]
	}
	return ctas
}

func offersFromSchema(schema map[string]any) []any {
	if offers, ok := schema["offers"]; ok && offers != nil {
		return scrapeutil.CoerceSlice(offers)
	}
	if schemaTypeIncludes(schema["@type"], "Offer") {
		return []any{schema}
	}
	return nil
}

func faqsFromSchema(schema map[string]any) []any {
	if faq, ok := schema["faq"]; ok && faq != nil {
		return scrapeutil.CoerceSlice(faq)
	}
	if faqs, ok := schema["faqs"]; ok && faqs != nil {
		return scrapeutil.CoerceSlice(faqs)
	}
	if t, _ := schema["@type"].(string); t == "FAQPage" {
		if entity, ok := schema["mainEntity"]; ok && entity != nil {
			return scrapeutil.CoerceSlice(entity)
		}
		return []any{}
	}
	return nil
}

// schemaTypeIncludes reports whether a schema @type value (scalar or
// array) includes the given type name.
func schemaTypeIncludes(typeVal any, name string) bool {
	switch t := typeVal.(type) {
	case string:
		return t == name
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == name {
				return true
			}
		}
	}
	return false
}
