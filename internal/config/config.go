package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Concept provider (text/vision model behind an OpenRouter-style API)
	OpenRouterAPIKey string
	OpenRouterURL    string
	ConceptModel     string
	ConceptTimeout   time.Duration

	// Render provider (image model behind an OpenAI-style API)
	OpenAIAPIKey   string
	OpenAIURL      string
	RenderModel    string
	VisionModel    string
	AnalyzeTimeout time.Duration
	RenderTimeout  time.Duration

	// Generation pipeline
	QuantityMin        int
	QuantityMax        int
	RenderConcurrency  int
	RenderMaxAttempts  int
	RenderBackoffBase  time.Duration
	BatchPause         time.Duration
	ProviderPacing     time.Duration // minimum spacing between render dispatches
	PollInterval       time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, etc.) for rendered images
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppName: envString("APP_NAME", "AI Painting Generator"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/paintings.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		OpenRouterAPIKey: envString("OPENROUTER_API_KEY", ""),
		OpenRouterURL:    envString("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		ConceptModel:     envString("CONCEPT_MODEL", "google/gemini-2.5-flash-preview"),
		ConceptTimeout:   envDuration("CONCEPT_TIMEOUT", 30*time.Second),

		OpenAIAPIKey:   envString("OPENAI_API_KEY", ""),
		OpenAIURL:      envString("OPENAI_URL", "https://api.openai.com/v1"),
		RenderModel:    envString("RENDER_MODEL", "dall-e-3"),
		VisionModel:    envString("VISION_MODEL", "gpt-4o"),
		AnalyzeTimeout: envDuration("ANALYZE_TIMEOUT", 60*time.Second),
		RenderTimeout:  envDuration("RENDER_TIMEOUT", 2*time.Minute),

		QuantityMin:       envInt("QUANTITY_MIN", 1),
		QuantityMax:       envInt("QUANTITY_MAX", 10),
		RenderConcurrency: envInt("GENERATION_CONCURRENCY", 3),
		RenderMaxAttempts: envInt("GENERATION_MAX_ATTEMPTS", 2),
		RenderBackoffBase: envDuration("GENERATION_BACKOFF_BASE", 2*time.Second),
		BatchPause:        envDuration("GENERATION_BATCH_PAUSE", time.Second),
		ProviderPacing:    envDuration("PROVIDER_PACING", time.Second),
		PollInterval:      envDuration("POLL_INTERVAL", 3*time.Second),

		SentryDSN: envString("SENTRY_DSN", ""),

		S3Region:    envString("S3_REGION", ""),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures required provider credentials exist in production.
// Development allows missing keys so the API surface can run against stubs.
func validateProduction(cfg *Config) {
	if cfg.OpenRouterAPIKey == "" {
		slog.Error("production deployment requires OPENROUTER_API_KEY")
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Error("production deployment requires OPENAI_API_KEY")
		os.Exit(1)
	}
	if cfg.S3Bucket == "" {
		slog.Error("production deployment requires S3_BUCKET",
			"hint", "rendered images are stored in S3-compatible object storage")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
