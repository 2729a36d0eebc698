package http

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agentsight/internal/metrics"
)

// simulateHandler queues one simulation job. The worker picks it up
// asynchronously; the response only promises the job exists.
func simulateHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(Storage)

	var req SimulateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid JSON body"})
	}

	if req.SiteID == "" || req.URL == "" || req.AgentName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Missing required parameters: siteId, url, agentName",
		})
	}

	jobID := uuid.New()
	if err := st.CreateSimulation(c.Context(), jobID, req.SiteID, req.URL, req.AgentName); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "queuing simulation failed"})
	}

	metrics.RecordSimulation("queued")

	return c.Status(fiber.StatusAccepted).JSON(SimulateResponse{
		JobID:   jobID.String(),
		Message: "Simulation job queued successfully",
	})
}

// simulationStatusHandler reports a job's state; the result and
// screenshot appear once the job is terminal.
func simulationStatusHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(Storage)

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid job id"})
	}

	sim, err := st.GetSimulation(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Job not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "job lookup failed"})
	}

	resp := SimulationStatusResponse{
		JobID:  sim.ID.String(),
		Status: sim.Status,
	}
	if sim.Result.Valid {
		var result any
		if err := json.Unmarshal(sim.Result.RawMessage, &result); err == nil {
			resp.Result = result
		}
	}
	if sim.ScreenshotURL.Valid {
		resp.ScreenshotURL = sim.ScreenshotURL.String
	}

	return c.JSON(resp)
}
