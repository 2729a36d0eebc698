package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"agentsight/internal/check"
	"agentsight/internal/config"
	"agentsight/internal/metrics"
	"agentsight/internal/store"
	"agentsight/web"
)

// Storage is the store surface the HTTP handlers use. Narrowed to an
// interface so handler tests can run against a fake.
type Storage interface {
	Ping(ctx context.Context) error
	MatchAgentID(ctx context.Context, ua string) (uuid.NullUUID, error)
	InsertVisit(ctx context.Context, id uuid.UUID, siteID, url, ua string,
		agentID uuid.NullUUID, summary, rawMeta json.RawMessage, llmsTxt *string) error
	InsertExtractedField(ctx context.Context, visitID uuid.UUID, name, value string) error
	UpsertUnknownAgent(ctx context.Context, ua, siteID string) error
	CreateSimulation(ctx context.Context, id uuid.UUID, siteID, url, agentName string) error
	GetSimulation(ctx context.Context, id uuid.UUID) (store.Simulation, error)
	GetSiteConfig(ctx context.Context, siteID string) (store.SiteConfig, error)
}

// Checker runs an on-demand readiness check of one URL. Implemented by
// the check pipeline; narrowed here for the same reason as Storage.
type Checker interface {
	Run(ctx context.Context, url, siteName, agentAPI string, enhanced bool) (*check.Report, error)
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, st Storage, checker Checker, logger *slog.Logger) *Server {
	app := fiber.New()

	// Inject config, store, and the check pipeline into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("checker", checker)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if logger != nil {
			c.Locals("logger", logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Redis client for rate limiting and health checks
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		}
	}

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB and Redis connectivity, and rod configuration.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.Ping(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		rodStatus := "disabled"
		if cfg.Rod.Enabled {
			rodStatus = "enabled"
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status": status,
			"db":     dbStatus,
			"redis":  redisStatus,
			"rod":    rodStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	// The embeddable telemetry beacon script.
	app.Get("/beacon.js", func(c *fiber.Ctx) error {
		c.Type("js")
		c.Set("Cache-Control", "public, max-age=3600")
		return c.Send(web.BeaconJS)
	})

	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = telemetryRateLimit(cfg, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1")
	v1.Post("/telemetry", rateMw, telemetryHandler)
	v1.Post("/simulate", simulateHandler)
	v1.Get("/simulate/:id", simulationStatusHandler)
	v1.Get("/config/:siteId", siteConfigHandler)
	v1.Post("/crawl", crawlHandler)

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
