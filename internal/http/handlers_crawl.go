package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// crawlHandler runs a synchronous readiness check of one URL. A page
// that cannot be acquired at all maps to 502: the fault is upstream,
// not in the request.
func crawlHandler(c *fiber.Ctx) error {
	checker, _ := c.Locals("checker").(Checker)
	logger, _ := c.Locals("logger").(*slog.Logger)

	if checker == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "readiness checks disabled"})
	}

	var req CrawlRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid JSON body"})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "url required"})
	}

	report, err := checker.Run(c.Context(), req.URL, req.SiteName, req.AgentAPI, req.Enhanced)
	if err != nil {
		if logger != nil {
			logger.Warn("readiness check failed", "url", req.URL, "error", err)
		}
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "page acquisition failed"})
	}

	return c.JSON(CrawlResponse{
		URL:        report.URL,
		Data:       report.Data,
		Validation: report.Validation,
		Snippet:    report.Snippet,
	})
}
