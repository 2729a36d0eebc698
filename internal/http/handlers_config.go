package http

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
)

// siteConfigHandler serves a site's stored configuration document, as
// fetched by the beacon on load.
func siteConfigHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(Storage)

	siteID := c.Params("siteId")
	cfg, err := st.GetSiteConfig(c.Context(), siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Site not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "config lookup failed"})
	}

	resp := SiteConfigResponse{}
	if cfg.ConfigJSON.Valid {
		var doc any
		if err := json.Unmarshal(cfg.ConfigJSON.RawMessage, &doc); err == nil {
			resp.ConfigJSON = doc
		}
	}
	if cfg.SnippetVersion.Valid {
		resp.SnippetVersion = cfg.SnippetVersion.String
	}

	return c.JSON(resp)
}
