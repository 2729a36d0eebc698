package http

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agentsight/internal/metrics"
	"agentsight/internal/scrapeutil"
)

// telemetryHandler ingests one beacon-reported page visit: it matches
// the user agent against the registry, stores the visit, breaks the
// extracted summary into queryable leaf fields, and tracks unmatched
// agents as candidates for the registry.
//
// Writes are sequential and non-transactional: a visit row without its
// flattened fields is still useful, and telemetry is not worth the
// locking a transaction would add.
func telemetryHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(Storage)
	logger, _ := c.Locals("logger").(*slog.Logger)

	var req TelemetryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid JSON body"})
	}

	if req.SiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "siteId required"})
	}

	// The URL may come from the body or the Referer header; either way
	// the stored form is origin plus path, no query or fragment.
	rawURL := req.URL
	if rawURL == "" {
		rawURL = c.Get("Referer")
	}
	pageURL := scrapeutil.NormalizeURL(rawURL)
	if pageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "url required"})
	}

	ua := req.UA
	if ua == "" {
		ua = c.Get("User-Agent")
	}

	ctx := c.Context()

	var agentID uuid.NullUUID
	if ua != "" {
		matched, err := st.MatchAgentID(ctx, ua)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "agent lookup failed"})
		}
		agentID = matched
	}

	var summaryJSON, rawMetaJSON json.RawMessage
	if req.ExtractedSummary != nil {
		summaryJSON, _ = json.Marshal(req.ExtractedSummary)
	}
	if req.RawMeta != nil {
		rawMetaJSON, _ = json.Marshal(req.RawMeta)
	}
	var llmsTxt *string
	if req.LlmsTxt != "" {
		llmsTxt = &req.LlmsTxt
	}

	visitID := uuid.New()
	if err := st.InsertVisit(ctx, visitID, req.SiteID, pageURL, ua, agentID, summaryJSON, rawMetaJSON, llmsTxt); err != nil {
		if logger != nil {
			logger.Error("storing visit failed", "site", req.SiteID, "error", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "storing visit failed"})
	}

	for name, value := range scrapeutil.FlattenSummary(req.ExtractedSummary) {
		if err := st.InsertExtractedField(ctx, visitID, name, value); err != nil && logger != nil {
			logger.Warn("storing extracted field failed", "visit_id", visitID, "field", name, "error", err)
		}
	}

	if !agentID.Valid && ua != "" {
		if err := st.UpsertUnknownAgent(ctx, ua, req.SiteID); err != nil && logger != nil {
			logger.Warn("recording unknown agent failed", "ua", ua, "error", err)
		}
	}

	metrics.RecordVisit(req.SiteID, agentID.Valid)

	return c.JSON(TelemetryResponse{OK: true, VisitID: visitID.String()})
}
