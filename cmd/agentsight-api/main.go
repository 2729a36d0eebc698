package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agentsight/internal/acquire"
	"agentsight/internal/agents"
	"agentsight/internal/check"
	"agentsight/internal/config"
	server "agentsight/internal/http"
	"agentsight/internal/jobs"
	"agentsight/internal/migrate"
	"agentsight/internal/sim"
	"agentsight/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// Create a shared *sql.DB with pooling for the Store
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	// Basic pool settings; adjust as needed
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	rootCtx := context.Background()

	// Periodic agent registry sync runs in every role: both the API's
	// telemetry matching and the worker's UA resolution depend on it.
	syncInterval := time.Duration(cfg.Agents.SyncIntervalHours) * time.Hour
	syncer := agents.NewSyncer(cfg.Agents.RemoteURL, syncInterval, st, logger)
	go syncer.Start(rootCtx)

	switch *role {
	case "api":
		if err := newAPIServer(cfg, st, logger).Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case "worker":
		startWorker(rootCtx, cfg, st, logger)
		select {}
	case "all":
		startWorker(rootCtx, cfg, st, logger)
		if err := newAPIServer(cfg, st, logger).Listen(); err != nil {
			log.Fatalf("server failed: %v", err)
		}
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}
}

func newAPIServer(cfg *config.Config, st *store.Store, logger *slog.Logger) *server.Server {
	acquirer := acquire.New(cfg, logger)
	pipeline := check.NewPipeline(acquirer, "", logger)
	return server.NewServer(cfg, st, pipeline, logger)
}

func startWorker(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
	browser := sim.NewRodBrowser(time.Duration(cfg.Simulation.TimeoutMs) * time.Millisecond)
	worker := sim.NewWorker(st, browser, cfg.Simulation.ScreenshotDir, logger)
	runner := jobs.NewRunner(cfg, st, worker, logger)
	go runner.Start(ctx)
}
