package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Sources
	SourcesConfigPath string

	// Storage
	DatabaseURL  string // empty selects the in-memory store
	RedisAddr    string // empty disables the list cache
	ListCacheTTL time.Duration

	// Fetch cache
	CacheFilePath string
	CacheTTL      time.Duration

	// Browser
	ChromePath        string
	BrowserNoSandbox  bool
	RequestDelay      time.Duration
	NavigationTimeout time.Duration
	RepairTimeout     time.Duration

	// RSS
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Serve mode
	ScanCron string
	HTTPPort string

	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		SourcesConfigPath: getEnvOrDefault("SOURCES_CONFIG_PATH", "configs/sources.yaml"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		ListCacheTTL:      getEnvDurationOrDefault("LIST_CACHE_TTL", 5*time.Minute),
		CacheFilePath:     getEnvOrDefault("CACHE_FILE_PATH", "cache/scraper-cache.json"),
		CacheTTL:          getEnvDurationOrDefault("CACHE_TTL", time.Hour),
		ChromePath:        os.Getenv("CHROME_PATH"),
		BrowserNoSandbox:  os.Getenv("BROWSER_NO_SANDBOX") == "true",
		RequestDelay:      getEnvDurationOrDefault("REQUEST_DELAY", time.Second),
		NavigationTimeout: getEnvDurationOrDefault("NAVIGATION_TIMEOUT", 30*time.Second),
		RepairTimeout:     getEnvDurationOrDefault("REPAIR_TIMEOUT", 15*time.Second),
		RequestTimeout:    getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:     getEnvIntOrDefault("RETRY_ATTEMPTS", 2),
		RetryDelay:        getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
		ScanCron:          getEnvOrDefault("SCAN_CRON", "0 */2 * * *"),
		HTTPPort:          getEnvOrDefault("HTTP_PORT", "8080"),
		Debug:             os.Getenv("DEBUG") == "true",
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.SourcesConfigPath == "" {
		return fmt.Errorf("SOURCES_CONFIG_PATH is required")
	}
	durations := map[string]time.Duration{
		"CACHE_TTL":          c.CacheTTL,
		"REQUEST_DELAY":      c.RequestDelay,
		"NAVIGATION_TIMEOUT": c.NavigationTimeout,
		"REPAIR_TIMEOUT":     c.RepairTimeout,
		"REQUEST_TIMEOUT":    c.RequestTimeout,
		"LIST_CACHE_TTL":     c.ListCacheTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}
