package bootstrap

import (
	"context"
	"strings"
	"time"

	"digest_server/adapter/in/http"
	"digest_server/config"
	"digest_server/infra/middleware"
	"digest_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return NewApp(ctx, deps), cleanup, nil
}

// NewApp assembles middleware and routes over already-built dependencies.
// Background helpers stop when ctx is done.
func NewApp(ctx context.Context, deps *Dependencies) *fiber.App {
	cfg := deps.Config

	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 1
	}

	app := fiber.New(fiber.Config{
		AppName:               "digest",
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit * 1024 * 1024,
		ReadBufferSize:        16384,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID,Content-Disposition",
		MaxAge:        86400,
	}))

	http.NewHealthHandler(deps.HealthChecks).Register(app)

	api := app.Group("/api", middleware.NoCache())
	http.NewIngestHandler(deps.IngestService).Register(api)

	var aiGuards []fiber.Handler
	if cfg.AIRateLimitPerMin > 0 {
		limiter := middleware.NewRateLimiter(cfg.AIRateLimitPerMin, time.Minute)
		go limiter.Run(ctx, time.Minute)
		aiGuards = append(aiGuards, limiter.Handler())
	}
	http.NewEmailHandler(deps.QueryService, deps.SummaryService).Register(api, aiGuards...)
	http.NewExportHandler(deps.QueryService).Register(api)

	if cfg.IsDevelopment() {
		RegisterDevRoutes(app, deps)
		logger.Info("Development diagnostics enabled at /dev")
	}

	return app
}
