package bootstrap

import (
	"context"
	"fmt"

	"digest_server/adapter/in/http"
	"digest_server/adapter/out/cache"
	"digest_server/adapter/out/memory"
	"digest_server/adapter/out/persistence"
	"digest_server/config"
	"digest_server/core/agent/llm"
	"digest_server/core/port/in"
	"digest_server/core/port/out"
	"digest_server/core/service/ingest"
	"digest_server/core/service/query"
	"digest_server/core/service/summary"
	"digest_server/infra/database"
	"digest_server/pkg/httputil"
	"digest_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	Config *config.Config

	DB    *pgxpool.Pool
	SQLDB *sqlx.DB
	Redis *redis.Client

	LLMClient *llm.Client
	EmailRepo out.EmailRepository

	IngestService  in.IngestService
	SummaryService in.SummaryService
	QueryService   in.QueryService

	// HealthChecks are pinged by the readiness probe.
	HealthChecks map[string]http.HealthChecker
}

// NewDependencies connects the configured store, optional cache and the
// completion client, then builds the services on top. The returned cleanup
// closes everything in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config:       cfg,
		HealthChecks: make(map[string]http.HealthChecker),
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	repo, err := openStore(ctx, cfg, deps, &cleanups)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// Redis is optional; without it reads go straight to the store.
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			logger.Warn("Redis connection failed, continuing without cache: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })

			redisCache := cache.NewRedisCache(redisClient, "digest:")
			repo = cache.NewEmailRepository(repo, redisCache, cfg.CacheTTL(), logger.Zerolog())
			deps.HealthChecks["redis"] = redisCache
			logger.Info("Email cache enabled (ttl: %v)", cfg.CacheTTL())
		}
	}
	deps.EmailRepo = repo

	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		JSONMode:    cfg.LLMJSONMode,
		HTTPClient:  httputil.NewClient(httputil.CompletionClientConfig(cfg.LLMTimeout(), cfg.SummarizeConcurrency)),
	})
	summarizer := llm.NewSummarizer(deps.LLMClient, cfg.LLMMaxBodyChars)

	deps.IngestService = ingest.NewService(repo)
	deps.QueryService = query.NewService(repo)
	deps.SummaryService = summary.NewService(repo, summarizer, summary.Config{
		Concurrency: cfg.SummarizeConcurrency,
		ItemTimeout: cfg.LLMTimeout(),
	}, logger.Zerolog())

	return deps, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config, deps *Dependencies, cleanups *[]func()) (out.EmailRepository, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("connect postgres pool: %w", err)
		}
		deps.DB = pool
		*cleanups = append(*cleanups, pool.Close)
		deps.HealthChecks["postgres"] = pool

		sqlDB, err := database.NewPostgresSQLX(cfg.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		deps.SQLDB = sqlDB
		*cleanups = append(*cleanups, func() { sqlDB.Close() })

		logger.Info("Connected to postgres")
		return persistence.NewEmailAdapter(sqlDB, persistence.Postgres), nil

	case config.DriverSQLite:
		sqlDB, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		deps.SQLDB = sqlDB
		*cleanups = append(*cleanups, func() { sqlDB.Close() })
		deps.HealthChecks["sqlite"] = http.PingFunc(sqlDB.PingContext)

		// A local sqlite file is created on first use.
		if err := persistence.Migrate(ctx, sqlDB, persistence.SQLite); err != nil {
			return nil, err
		}
		logger.Info("Opened sqlite store at %s", cfg.SQLitePath)
		return persistence.NewEmailAdapter(sqlDB, persistence.SQLite), nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store; data is lost on exit")
		return memory.NewEmailStore(), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// Dialect returns the SQL dialect for the configured driver.
func Dialect(cfg *config.Config) (persistence.Dialect, bool) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return persistence.Postgres, true
	case config.DriverSQLite:
		return persistence.SQLite, true
	default:
		return persistence.Dialect{}, false
	}
}
