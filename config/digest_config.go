package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string

	// Cache
	RedisURL    string
	CacheTTLSec int

	// OpenAI
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	LLMModel        string
	LLMMaxTokens    int
	LLMTemperature  float64
	LLMTimeoutSec   int
	LLMJSONMode     bool
	LLMMaxBodyChars int

	// Summarization
	SummarizeConcurrency int
	// AIRateLimitPerMin caps summarize requests per client IP; 0 disables it.
	AIRateLimitPerMin int

	// HTTP
	AllowedOrigins []string
	BodyLimitMB    int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "4000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "digest.db"),

		RedisURL:    getEnv("REDIS_URL", ""),
		CacheTTLSec: getEnvInt("CACHE_TTL_SEC", 300),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:   getEnvInt("LLM_TIMEOUT_SEC", 60),
		LLMJSONMode:     getEnvBool("LLM_JSON_MODE", true),
		LLMMaxBodyChars: getEnvInt("LLM_MAX_BODY_CHARS", 4000),

		SummarizeConcurrency: getEnvInt("SUMMARIZE_CONCURRENCY", 4),
		AIRateLimitPerMin:    getEnvInt("AI_RATE_LIMIT_PER_MIN", 30),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		BodyLimitMB:    getEnvInt("BODY_LIMIT_MB", 1),
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.IsDevelopment() {
			cfg.LogLevel = "debug"
		}
	}
	if cfg.SummarizeConcurrency < 1 {
		cfg.SummarizeConcurrency = 1
	}

	if err := cfg.validateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateStore() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return errors.New("DATABASE_DRIVER must be postgres, sqlite or memory")
	}
	return nil
}

// ValidateAI reports whether the completion service can be configured.
func (c *Config) ValidateAI() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

// LLMTimeout is the per-item deadline for one completion call.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
