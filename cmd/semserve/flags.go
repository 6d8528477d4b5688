package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	SpecPath        string
	Addr            string
	LogLevel        string
	LogFormat       string
	QueryCacheTTL   time.Duration
	RateLimit       float64
	RateBurst       int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.SpecPath, "spec",
		getEnv("SEMSERVE_SPEC", "config.yaml"),
		"Path to the route specification file (env: SEMSERVE_SPEC)")

	flag.StringVar(&cfg.SpecPath, "s",
		getEnv("SEMSERVE_SPEC", "config.yaml"),
		"Path to the route specification file (env: SEMSERVE_SPEC)")

	flag.StringVar(&cfg.Addr, "addr",
		getEnv("SEMSERVE_ADDR", ":8080"),
		"HTTP listen address (env: SEMSERVE_ADDR)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SEMSERVE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SEMSERVE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SEMSERVE_LOG_FORMAT", "json"),
		"Log format: json, text (env: SEMSERVE_LOG_FORMAT)")

	flag.DurationVar(&cfg.QueryCacheTTL, "query-cache-ttl",
		getEnvDuration("SEMSERVE_QUERY_CACHE_TTL", time.Minute),
		"TTL for cached data source responses (env: SEMSERVE_QUERY_CACHE_TTL)")

	flag.Float64Var(&cfg.RateLimit, "rate-limit",
		getEnvFloat("SEMSERVE_RATE_LIMIT", 0),
		"Requests per second across all routes, 0 to disable (env: SEMSERVE_RATE_LIMIT)")

	flag.IntVar(&cfg.RateBurst, "rate-burst",
		getEnvInt("SEMSERVE_RATE_BURST", 10),
		"Burst size for the rate limiter (env: SEMSERVE_RATE_BURST)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SEMSERVE_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SEMSERVE_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate the route specification and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate spec file exists
	if _, err := os.Stat(cfg.SpecPath); err != nil {
		return fmt.Errorf("route specification not found: %s", cfg.SpecPath)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v", cfg.RateLimit)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Configuration-driven linked data server

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a custom route specification
  %s --spec=/path/to/routes.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export SEMSERVE_SPEC=/etc/semserve/routes.yaml
  export SEMSERVE_LOG_LEVEL=debug
  %s

  # Validate the route specification only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
