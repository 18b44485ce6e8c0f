// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/internal/ranker"
	"github.com/dshills/scriptrag/internal/similarity"
)

// DefaultDBPath is the default location for the database
const DefaultDBPath = "~/.scriptrag/scriptrag.db"

// Config holds all application configuration.
type Config struct {
	DBPath   string
	LogLevel slog.Level

	// Embedding provider
	Provider          string
	APIKey            string
	JinaAPIKey        string
	OpenAIKey         string
	BaseURL           string
	Model             string
	ChatModel         string
	LocalDimension    int
	RequestsPerSecond float64
	Burst             int

	// Batch processing; RetryAttempts includes the first call
	BatchSize     int
	MaxConcurrent int
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	CallTimeout   time.Duration

	// Chunking of long content, in characters
	ChunkSize    int
	ChunkOverlap int

	// Embedding cache
	CacheMaxEntries int
	CacheStrategy   embedder.CacheStrategy
	CacheMaxAge     time.Duration

	// Search
	Metric            similarity.Metric
	SemanticThreshold float64
	SearchCacheSize   int
	SearchCacheTTL    time.Duration
	RankingFile       string

	MetricsAddr string
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s", "24h") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	level, err := ParseLogLevel(getEnv("SCRIPTRAG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	strategy, err := embedder.ParseCacheStrategy(getEnv("SCRIPTRAG_CACHE_STRATEGY", string(embedder.StrategyLRU)))
	if err != nil {
		return nil, err
	}
	metric, err := similarity.ParseMetric(getEnv("SCRIPTRAG_SIMILARITY_METRIC", string(similarity.Cosine)))
	if err != nil {
		return nil, err
	}

	dbPath, err := ExpandPath(getEnv("SCRIPTRAG_DB_PATH", DefaultDBPath))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:   dbPath,
		LogLevel: level,

		Provider:          getEnv("SCRIPTRAG_EMBEDDING_PROVIDER", ""),
		APIKey:            getEnv("SCRIPTRAG_API_KEY", ""),
		JinaAPIKey:        getEnv("JINA_API_KEY", ""),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		BaseURL:           getEnv("SCRIPTRAG_EMBEDDING_BASE_URL", ""),
		Model:             getEnv("SCRIPTRAG_EMBEDDING_MODEL", ""),
		ChatModel:         getEnv("SCRIPTRAG_CHAT_MODEL", ""),
		LocalDimension:    getEnvAsInt("SCRIPTRAG_LOCAL_DIMENSION", 384),
		RequestsPerSecond: getEnvAsFloat("SCRIPTRAG_REQUESTS_PER_SECOND", 0),
		Burst:             getEnvAsInt("SCRIPTRAG_REQUEST_BURST", 1),

		BatchSize:     getEnvAsInt("SCRIPTRAG_BATCH_SIZE", 32),
		MaxConcurrent: getEnvAsInt("SCRIPTRAG_MAX_CONCURRENT", 4),
		RetryAttempts: getEnvAsInt("SCRIPTRAG_RETRY_ATTEMPTS", 3),
		RetryDelay:    getEnvAsDuration("SCRIPTRAG_RETRY_DELAY", time.Second),
		MaxRetryDelay: getEnvAsDuration("SCRIPTRAG_MAX_RETRY_DELAY", 30*time.Second),
		CallTimeout:   getEnvAsDuration("SCRIPTRAG_CALL_TIMEOUT", 60*time.Second),

		ChunkSize:    getEnvAsInt("SCRIPTRAG_CHUNK_SIZE", 2000),
		ChunkOverlap: getEnvAsInt("SCRIPTRAG_CHUNK_OVERLAP", 200),

		CacheMaxEntries: getEnvAsInt("SCRIPTRAG_CACHE_MAX_ENTRIES", 10000),
		CacheStrategy:   strategy,
		CacheMaxAge:     getEnvAsDuration("SCRIPTRAG_CACHE_MAX_AGE", 30*24*time.Hour),

		Metric:            metric,
		SemanticThreshold: getEnvAsFloat("SCRIPTRAG_SEMANTIC_THRESHOLD", 0.5),
		SearchCacheSize:   getEnvAsInt("SCRIPTRAG_SEARCH_CACHE_SIZE", 1000),
		SearchCacheTTL:    getEnvAsDuration("SCRIPTRAG_SEARCH_CACHE_TTL", time.Hour),
		RankingFile:       getEnv("SCRIPTRAG_RANKING_FILE", ""),

		MetricsAddr: getEnv("SCRIPTRAG_METRICS_ADDR", ""),
	}

	if getEnvAsBool("SCRIPTRAG_OFFLINE", false) {
		cfg.Provider = embedder.ProviderLocal
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks numeric settings are in range
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("SCRIPTRAG_BATCH_SIZE must be a positive integer")
	case c.MaxConcurrent <= 0:
		return errors.New("SCRIPTRAG_MAX_CONCURRENT must be a positive integer")
	case c.RetryAttempts <= 0:
		return errors.New("SCRIPTRAG_RETRY_ATTEMPTS must be a positive integer")
	case c.ChunkSize <= 0:
		return errors.New("SCRIPTRAG_CHUNK_SIZE must be a positive integer")
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return errors.New("SCRIPTRAG_CHUNK_OVERLAP must be between 0 and SCRIPTRAG_CHUNK_SIZE")
	case c.CacheMaxEntries <= 0:
		return errors.New("SCRIPTRAG_CACHE_MAX_ENTRIES must be a positive integer")
	case c.LocalDimension <= 0:
		return errors.New("SCRIPTRAG_LOCAL_DIMENSION must be a positive integer")
	case c.RequestsPerSecond < 0:
		return errors.New("SCRIPTRAG_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

// Embedder returns the provider configuration
func (c *Config) Embedder() embedder.Config {
	return embedder.Config{
		Provider:          c.Provider,
		APIKey:            c.APIKey,
		JinaAPIKey:        c.JinaAPIKey,
		OpenAIKey:         c.OpenAIKey,
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		ChatModel:         c.ChatModel,
		Dimension:         c.LocalDimension,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Timeout:           c.CallTimeout,
	}
}

// Ranking loads the ranking profile, falling back to the defaults when no
// file is configured
func (c *Config) Ranking() (ranker.Config, error) {
	if c.RankingFile == "" {
		return ranker.DefaultConfig(), nil
	}
	rc, err := ranker.LoadConfig(c.RankingFile)
	if err != nil {
		return ranker.Config{}, fmt.Errorf("failed to load ranking profile: %w", err)
	}
	return rc, nil
}

// ParseLogLevel maps a level name to a slog.Level
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", s)
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
