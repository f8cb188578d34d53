package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"equialert/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Scraping provider
	ScraperBaseURL       string
	ScraperTimeout       time.Duration
	ScraperMaxRetries    int
	ScraperBackoffFactor float64

	// Market-data API (structured provider)
	MarketDataAPIKey    string
	MarketDataAPISecret string
	MarketDataBaseURL   string // empty means the client's default
	MarketDataTimeout   time.Duration

	// Fallback behavior
	AutoFallback bool

	// Cache
	QuoteCacheSize     int
	QuoteCacheTTL      time.Duration
	HistoryCacheSize   int
	HistoryCacheTTL    time.Duration
	IndicatorCacheSize int
	IndicatorCacheTTL  time.Duration
	MarketCacheSize    int
	MarketCacheTTL     time.Duration

	// Database
	DBPath string

	// HTTP
	ListenAddr string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Scraping provider
	cfg.ScraperBaseURL = getEnv("SCRAPER_BASE_URL", "https://www.google.com/finance")

	timeoutSecs, err := getEnvAsIntRequired("SCRAPER_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCRAPER_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSecs <= 0 {
		errs = append(errs, "SCRAPER_TIMEOUT_SECONDS must be positive")
	}
	cfg.ScraperTimeout = time.Duration(timeoutSecs) * time.Second

	cfg.ScraperMaxRetries, err = getEnvAsIntRequired("SCRAPER_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCRAPER_MAX_RETRIES: %v", err))
	} else if cfg.ScraperMaxRetries < 0 {
		errs = append(errs, "SCRAPER_MAX_RETRIES cannot be negative")
	}

	cfg.ScraperBackoffFactor, err = getEnvAsFloatRequired("SCRAPER_BACKOFF_FACTOR", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCRAPER_BACKOFF_FACTOR: %v", err))
	} else if cfg.ScraperBackoffFactor <= 0 {
		errs = append(errs, "SCRAPER_BACKOFF_FACTOR must be positive")
	}

	// Market-data API. Keys may be empty: the structured provider is then
	// only usable for public endpoints and will fail on first use.
	cfg.MarketDataAPIKey = getEnv("MARKET_DATA_API_KEY", "")
	cfg.MarketDataAPISecret = getEnv("MARKET_DATA_API_SECRET", "")
	cfg.MarketDataBaseURL = getEnv("MARKET_DATA_BASE_URL", "")

	mdTimeoutSecs := getEnvAsInt("MARKET_DATA_TIMEOUT_SECONDS", 10)
	if mdTimeoutSecs <= 0 {
		errs = append(errs, "MARKET_DATA_TIMEOUT_SECONDS must be positive")
	}
	cfg.MarketDataTimeout = time.Duration(mdTimeoutSecs) * time.Second

	cfg.AutoFallback = getEnvAsBool("AUTO_FALLBACK", true)

	// Cache sizes and TTLs
	cfg.QuoteCacheSize = getEnvAsInt("QUOTE_CACHE_SIZE", 1000)
	cfg.QuoteCacheTTL = time.Duration(getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 300)) * time.Second
	cfg.HistoryCacheSize = getEnvAsInt("HISTORY_CACHE_SIZE", 500)
	cfg.HistoryCacheTTL = time.Duration(getEnvAsInt("HISTORY_CACHE_TTL_SECONDS", 3600)) * time.Second
	cfg.IndicatorCacheSize = getEnvAsInt("INDICATOR_CACHE_SIZE", 500)
	cfg.IndicatorCacheTTL = time.Duration(getEnvAsInt("INDICATOR_CACHE_TTL_SECONDS", 3600)) * time.Second
	cfg.MarketCacheSize = getEnvAsInt("MARKET_CACHE_SIZE", 100)
	cfg.MarketCacheTTL = time.Duration(getEnvAsInt("MARKET_CACHE_TTL_SECONDS", 300)) * time.Second
	if cfg.QuoteCacheSize <= 0 || cfg.HistoryCacheSize <= 0 || cfg.IndicatorCacheSize <= 0 || cfg.MarketCacheSize <= 0 {
		errs = append(errs, "cache sizes must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/stocks.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// HTTP
	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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
