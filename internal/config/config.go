package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Portal settings
	PortalBaseURL string
	PortalAPIURL  string
	PortalTimeout time.Duration
	UserAgent     string

	// DegradedFallback makes a failed basic-info fetch return a placeholder
	// case instead of an error. Placeholders are never persisted.
	DegradedFallback bool

	// Concurrency settings
	FetchConcurrency int
	BulkConcurrency  int

	// API settings
	SearchMaxLimit int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:          getEnv("HOST", "0.0.0.0"),
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/judicial_cases.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://consultaprocesos.ramajudicial.gov.co"),
		PortalAPIURL:  getEnv("PORTAL_API_URL", "https://consultaprocesos.ramajudicial.gov.co:448"),
		UserAgent:     getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	portalTimeout, err := strconv.Atoi(getEnv("PORTAL_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_TIMEOUT: %w", err)
	}
	cfg.PortalTimeout = time.Duration(portalTimeout) * time.Second

	cfg.DegradedFallback, err = strconv.ParseBool(getEnv("PORTAL_DEGRADED_FALLBACK", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_DEGRADED_FALLBACK: %w", err)
	}

	cfg.FetchConcurrency, err = strconv.Atoi(getEnv("PORTAL_FETCH_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_FETCH_CONCURRENCY: %w", err)
	}
	if cfg.FetchConcurrency < 1 {
		return nil, fmt.Errorf("invalid PORTAL_FETCH_CONCURRENCY: must be at least 1")
	}

	cfg.BulkConcurrency, err = strconv.Atoi(getEnv("BULK_CONCURRENCY", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_CONCURRENCY: %w", err)
	}
	if cfg.BulkConcurrency < 1 {
		return nil, fmt.Errorf("invalid BULK_CONCURRENCY: must be at least 1")
	}

	cfg.SearchMaxLimit, err = strconv.Atoi(getEnv("SEARCH_MAX_LIMIT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_MAX_LIMIT: %w", err)
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
