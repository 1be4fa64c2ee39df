package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturoeanton/docgraph/internal/adapter/store"
	"github.com/arturoeanton/docgraph/internal/adapter/vcs"
	"github.com/arturoeanton/docgraph/internal/handler"
	"github.com/arturoeanton/docgraph/internal/mcp"
	"github.com/arturoeanton/docgraph/internal/middleware"
	"github.com/arturoeanton/docgraph/internal/service"
	"github.com/arturoeanton/docgraph/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("Starting DocGraph API",
		"port", cfg.Port,
		"database", cfg.DSN(),
		"storage", cfg.StoragePath,
		"clone_depth", cfg.CloneDepth,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = pgStore.Migrate(migrateCtx)
	cancel()
	if err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// ── Services ─────────────────────────────────────────────────────────
	tracker := service.NewProgressTracker()
	repoService := service.NewRepositoryService(pgStore, vcs.NewGitProvider(cfg.CloneDepth), tracker, cfg.StoragePath)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := newApp(cfg, repoService, tracker, pgStore)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(repoService, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	go func() {
		slog.Info("Fiber listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	repoService.Shutdown()
}

// auditStore records and lists audit entries.
type auditStore interface {
	middleware.AuditWriter
	handler.AuditLister
}

// newApp builds the Fiber app and its routes. Only /api requests are
// audited; /metrics scrapes are not.
func newApp(cfg *config.Config, repos handler.RepositoryService, progress handler.ProgressSource, audit auditStore) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ── API Routes ───────────────────────────────────────────────────────
	api := app.Group("/api",
		middleware.AuditMiddleware(audit),
		middleware.RateLimit("api", cfg.APIRateLimit, time.Minute),
	)

	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	importLimit := middleware.RateLimit("import", cfg.ImportRateLimit, time.Minute)
	handler.NewRepoHandler(repos, importLimit).Register(api)
	handler.NewJobsHandler(repos, progress).Register(api)
	handler.NewAuditHandler(audit).Register(api)

	return app
}
