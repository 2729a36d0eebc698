package validate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"agentsight/internal/model"
)

// Scoring weights. These are a fixed rubric, not a learned model; any
// change breaks comparability of confidence scores across runs.
const (
	penaltyMissingTitle  = 0.30
	penaltyMissingH1     = 0.20
	penaltyMissingSchema = 0.20
	penaltyMissingMinor  = 0.05
)

var requiredMetaTags = []string{"description", "viewport", "charset"}
var optionalMetaTags = []string{"keywords", "author", "robots"}

// Validate computes a deterministic confidence score and
// element-presence checklist from raw markup. The dynamic (rendered)
// markup only influences size and DOM node counts; presence checks run
// against the static document. No external calls are made.
func Validate(url, staticMarkup, dynamicMarkup string) model.ValidationResult {
	staticDoc, err := goquery.NewDocumentFromReader(strings.NewReader(staticMarkup))
	if err != nil {
		staticDoc = nil
	}

	var dynamicDoc *goquery.Document
	if dynamicMarkup != "" {
		dynamicDoc, _ = goquery.NewDocumentFromReader(strings.NewReader(dynamicMarkup))
	}

	result := model.ValidationResult{
		Confidence:      1.0,
		MissingElements: []string{},
		StaticSize:      len(staticMarkup),
		DynamicSize:     len(dynamicMarkup),
	}

	if staticDoc == nil {
		return result
	}

	hasTitle := strings.TrimSpace(staticDoc.Find("title").Text()) != ""
	hasH1 := staticDoc.Find("h1").Length() > 0
	hasSchema := staticDoc.Find(`script[type="application/ld+json"]`).Length() > 0
	hasDescription := staticDoc.Find(`meta[name="description"]`).AttrOr("content", "") != ""
	hasOGImage := staticDoc.Find(`meta[property="og:image"]`).AttrOr("content", "") != ""

	if !hasTitle {
		result.MissingElements = append(result.MissingElements, "title")
		result.Confidence -= penaltyMissingTitle
	}
	if !hasH1 {
		result.MissingElements = append(result.MissingElements, "h1")
		result.Confidence -= penaltyMissingH1
	}
	if !hasSchema {
		result.MissingElements = append(result.MissingElements, "schema")
		result.Confidence -= penaltyMissingSchema
	}
	if !hasDescription {
		result.MissingElements = append(result.MissingElements, "meta:description")
		result.Confidence -= penaltyMissingMinor
	}
	if !hasOGImage {
		result.MissingElements = append(result.MissingElements, "openGraph:image")
		result.Confidence -= penaltyMissingMinor
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}

	result.SchemaPresence = hasSchema
	result.KeywordCoverage = keywordCoverage(staticDoc)
	result.MetaTagsCompleteness = metaCompleteness(staticDoc)

	// Prefer the rendered document's node count when available: it is
	// closer to what an agent running scripts would see.
	result.DOMNodeCount = countNodes(staticDoc)
	if dynamicDoc != nil {
		if n := countNodes(dynamicDoc); n > 0 {
			result.DOMNodeCount = n
		}
	}

	return result
}

func countNodes(doc *goquery.Document) int {
	return doc.Find("*").Length()
}

// keywordCoverage is a simple length heuristic over the three signals
// agents lean on most.
func keywordCoverage(doc *goquery.Document) float64 {
	title := strings.TrimSpace(doc.Find("title").Text())
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	description := doc.Find(`meta[name="description"]`).AttrOr("content", "")

	score := 0.0
	if len(title) > 5 {
		score += 0.3
	}
	if len(h1) > 5 {
		score += 0.3
	}
	if len(description) > 10 {
		score += 0.4
	}
	return score
}

// metaCompleteness weights a required set of meta tags 80/20 against an
// optional set, each as fraction-present. A charset declaration counts
// whether it appears as <meta charset> or a content-type equivalent.
func metaCompleteness(doc *goquery.Document) float64 {
	requiredCount := 0
	for _, tag := range requiredMetaTags {
		if doc.Find(`meta[name="`+tag+`"]`).Length() > 0 {
			requiredCount++
			continue
		}
		if tag == "charset" && doc.Find("meta[charset]").Length() > 0 {
			requiredCount++
		}
	}
	if doc.Find(`meta[http-equiv="content-type"]`).Length() > 0 && requiredCount < len(requiredMetaTags) {
		requiredCount++
	}

	optionalCount := 0
	for _, tag := range optionalMetaTags {
		if doc.Find(`meta[name="`+tag+`"]`).Length() > 0 {
			optionalCount++
		}
	}

	requiredScore := float64(requiredCount) / float64(len(requiredMetaTags))
	optionalScore := float64(optionalCount) / float64(len(optionalMetaTags))
	return requiredScore*0.8 + optionalScore*0.2
}
