// Package config centralizes environment-driven configuration, following
// the teacher's flat-struct-plus-getEnv*-helpers pattern: every setting has
// a documented default and can be overridden by an environment variable,
// and LoadConfig never fails — ValidateConfig is a separate fail-fast pass.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = "8080"

	DefaultDatabaseURL = "postgres://localhost:5432/attestation_pipeline?sslmode=disable"

	DefaultMaxUploadBytes = 50 << 20 // 50MB, procurement PDFs run large

	DefaultQueueMaxConcurrent = 4
	DefaultQueuePollInterval  = 1 * time.Second
	DefaultCancelCheckInterval = 500 * time.Millisecond

	DefaultJobMaxAttempts = 3

	DefaultLLMModel           = "gpt-4o-mini"
	DefaultVisionModel        = "gpt-4o"
	DefaultLLMRequestTimeout  = 60 * time.Second
	DefaultLLMMaxRetries      = 3
	DefaultCircuitFailureThreshold = 5
	DefaultCircuitResetTimeout     = 500 * time.Millisecond
	DefaultCircuitHalfOpenMax      = 1

	DefaultJobCostCeilingUSD = 2.00

	DefaultMatchMinSimilarity       = 0.35
	DefaultMatchMinCommonWords      = 2
	DefaultMatchMinCommonWordsShort = 1

	DefaultRateLimitWindow    = time.Minute
	DefaultUploadRateLimit    = 20
	DefaultTrustedProxies     = "127.0.0.1,::1"

	DefaultLogLevel = "info"
)

// Config holds every runtime setting the service reads at startup.
type Config struct {
	Host        string
	Port        string
	CORSOrigins []string
	LogLevel    string

	DatabaseURL string

	MaxUploadBytes int64

	QueueMaxConcurrent   int
	QueuePollInterval    time.Duration
	CancelCheckInterval  time.Duration
	JobMaxAttempts       int

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	LLMModel        string
	VisionModel     string
	LLMEnabled      bool
	LLMRequestTimeout time.Duration
	LLMMaxRetries     int

	CircuitFailureThreshold int
	CircuitResetTimeout     time.Duration
	CircuitHalfOpenMax      int

	JobCostCeilingUSD float64

	MatchMinSimilarity       float64
	MatchMinCommonWords      int
	MatchMinCommonWordsShort int

	RateLimitWindow    time.Duration
	UploadRateLimit    int
	TrustedProxies     []string

	StorageDir string
}

// LoadConfig reads every setting from the environment, falling back to its
// documented default. It never returns an error; call ValidateConfig
// afterward to fail fast on invalid combinations.
func LoadConfig() *Config {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")
	anthropicKey := getEnv("ANTHROPIC_API_KEY", "")
	geminiKey := getEnv("GEMINI_API_KEY", "")
	llmEnabled := openAIKey != "" || anthropicKey != "" || geminiKey != ""

	if llmEnabled {
		slog.Info("llm providers enabled", "openai", openAIKey != "", "anthropic", anthropicKey != "", "gemini", geminiKey != "")
	} else {
		slog.Info("llm providers disabled, structured extraction and vision tiers unavailable")
	}

	return &Config{
		Host:        getEnv("HOST", DefaultHost),
		Port:        getEnv("PORT", DefaultPort),
		CORSOrigins: corsOrigins,
		LogLevel:    getEnv("LOG_LEVEL", DefaultLogLevel),

		DatabaseURL: getEnv("DATABASE_URL", DefaultDatabaseURL),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

		QueueMaxConcurrent:  getEnvInt("QUEUE_MAX_CONCURRENT", DefaultQueueMaxConcurrent),
		QueuePollInterval:   getEnvDuration("QUEUE_POLL_INTERVAL", DefaultQueuePollInterval),
		CancelCheckInterval: getEnvDuration("CANCEL_CHECK_INTERVAL", DefaultCancelCheckInterval),
		JobMaxAttempts:      getEnvInt("JOB_MAX_ATTEMPTS", DefaultJobMaxAttempts),

		OpenAIAPIKey:      openAIKey,
		AnthropicAPIKey:   anthropicKey,
		GeminiAPIKey:      geminiKey,
		LLMModel:          getEnv("LLM_MODEL", DefaultLLMModel),
		VisionModel:       getEnv("VISION_MODEL", DefaultVisionModel),
		LLMEnabled:        llmEnabled,
		LLMRequestTimeout: getEnvDuration("LLM_REQUEST_TIMEOUT", DefaultLLMRequestTimeout),
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", DefaultLLMMaxRetries),

		CircuitFailureThreshold: getEnvInt("CIRCUIT_FAILURE_THRESHOLD", DefaultCircuitFailureThreshold),
		CircuitResetTimeout:     getEnvDuration("CIRCUIT_RESET_TIMEOUT", DefaultCircuitResetTimeout),
		CircuitHalfOpenMax:      getEnvInt("CIRCUIT_HALF_OPEN_MAX", DefaultCircuitHalfOpenMax),

		JobCostCeilingUSD: getEnvFloat64("JOB_COST_CEILING_USD", DefaultJobCostCeilingUSD),

		MatchMinSimilarity:       getEnvFloat64("MATCH_MIN_SIMILARITY", DefaultMatchMinSimilarity),
		MatchMinCommonWords:      getEnvInt("MATCH_MIN_COMMON_WORDS", DefaultMatchMinCommonWords),
		MatchMinCommonWordsShort: getEnvInt("MATCH_MIN_COMMON_WORDS_SHORT", DefaultMatchMinCommonWordsShort),

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
		UploadRateLimit: getEnvInt("UPLOAD_RATE_LIMIT", DefaultUploadRateLimit),
		TrustedProxies:  splitCSV(getEnv("TRUSTED_PROXIES", DefaultTrustedProxies)),

		StorageDir: getEnv("STORAGE_DIR", ".data/uploads"),
	}
}

// ValidateConfig checks config values and returns an error on the first
// failure. Call after LoadConfig to fail fast on invalid configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.Port != "" {
		if _, err := strconv.Atoi(cfg.Port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must have at least one origin")
	}
	if cfg.QueueMaxConcurrent <= 0 {
		return fmt.Errorf("QUEUE_MAX_CONCURRENT must be positive")
	}
	if cfg.JobMaxAttempts <= 0 {
		return fmt.Errorf("JOB_MAX_ATTEMPTS must be positive")
	}
	if cfg.JobCostCeilingUSD <= 0 {
		return fmt.Errorf("JOB_COST_CEILING_USD must be positive")
	}
	if cfg.MatchMinSimilarity < 0 || cfg.MatchMinSimilarity > 1 {
		return fmt.Errorf("MATCH_MIN_SIMILARITY must be in range 0..1")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if len(cfg.TrustedProxies) == 0 {
		return fmt.Errorf("TRUSTED_PROXIES must have at least one entry")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var items []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
