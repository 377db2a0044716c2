package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bond-anton/nts.service/worker"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("NTS_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: NTS_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("NTS_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: NTS_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("NTS_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error, critical, fatal (env: NTS_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("NTS_LOG_FORMAT", "json"),
		"Log format: json, text (env: NTS_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" {
		if _, err := worker.ParseLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Background worker with remote control and time series storage

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/nts/worker.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export NTS_CONFIG=/etc/nts/worker.json
  export NTS_REDIS_ADDR=redis.local:6379
  %s

  # Validate configuration only
  %s --config=/etc/nts/worker.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
