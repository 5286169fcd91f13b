package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string
	LogLevel        string
	LogPretty       bool
	JWTSecret       string
	QueueURL        string
	// RequireQueue makes startup fail without QueueURL. Set by runtimes where
	// in-process jobs would not outlive the invocation.
	RequireQueue bool
	// AIProvider selects "openai" or "mock" for embedding and categorization.
	AIProvider string

	Embedding  EmbeddingConfig
	Categorize CategorizeConfig
	Pipeline   PipelineConfig
}

// EmbeddingConfig describes the external embedding service.
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	// Requests per second allowed towards the service; 0 disables limiting.
	RateLimit float64
}

// CategorizeConfig describes the external categorization service.
type CategorizeConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64
}

// PipelineConfig controls ingestion retries and concurrency.
type PipelineConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	StorageTimeout time.Duration
	PoolSize       int
	PoolBacklog    int
	SweepInterval  time.Duration
	// SweepAfter is how long a job may stay pending before it is dispatched again.
	SweepAfter     time.Duration
	// StuckAfter is how long a running job may go without progress before it is failed.
	StuckAfter     time.Duration
	ChunkWords     int
	ChunkOverlap   int
	MaxChunks      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvBool("LOG_PRETTY", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		QueueURL:        strings.TrimSpace(getEnv("INGEST_SQS_QUEUE_URL", "")),
		AIProvider:      normalizeProvider(getEnv("AI_PROVIDER", defaultProvider(env, openAIKey))),
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("EMBEDDING_API_KEY", openAIKey),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
			Timeout:   getEnvDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			RateLimit: getEnvFloat("EMBEDDING_RATE_LIMIT", 5),
		},
		Categorize: CategorizeConfig{
			BaseURL:   getEnv("CATEGORIZE_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("CATEGORIZE_API_KEY", openAIKey),
			Model:     getEnv("CATEGORIZE_MODEL", "gpt-4o-mini"),
			Timeout:   getEnvDuration("CATEGORIZE_TIMEOUT", 30*time.Second),
			RateLimit: getEnvFloat("CATEGORIZE_RATE_LIMIT", 5),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:    getEnvInt("PIPELINE_MAX_ATTEMPTS", 3),
			BackoffBase:    getEnvDuration("PIPELINE_BACKOFF_BASE", 500*time.Millisecond),
			StorageTimeout: getEnvDuration("PIPELINE_STORAGE_TIMEOUT", 2*time.Minute),
			PoolSize:       getEnvInt("PIPELINE_POOL_SIZE", 8),
			PoolBacklog:    getEnvInt("PIPELINE_POOL_BACKLOG", 1024),
			SweepInterval:  getEnvDuration("PIPELINE_SWEEP_INTERVAL", time.Minute),
			SweepAfter:     getEnvDuration("PIPELINE_SWEEP_AFTER", 2*time.Minute),
			StuckAfter:     getEnvDuration("PIPELINE_STUCK_AFTER", 30*time.Minute),
			ChunkWords:     getEnvInt("PIPELINE_CHUNK_WORDS", 200),
			ChunkOverlap:   getEnvInt("PIPELINE_CHUNK_OVERLAP", 30),
			MaxChunks:      getEnvInt("PIPELINE_MAX_CHUNKS", 200),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config env %s invalid float: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func defaultProvider(env, apiKey string) string {
	if apiKey == "" && env != "production" {
		return "mock"
	}
	return "openai"
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mock", "fake":
		return "mock"
	default:
		return "openai"
	}
}
