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
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	Demo            bool
	SampleSize      int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("REPLAY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: REPLAY_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("REPLAY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: REPLAY_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("REPLAY_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error; overrides log.level (env: REPLAY_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("REPLAY_LOG_FORMAT", ""),
		"Log format: json, text; overrides log.format (env: REPLAY_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("REPLAY_DEBUG", false),
		"Enable debug logging (env: REPLAY_DEBUG)")

	fs.BoolVar(&cfg.Demo, "demo",
		getEnvBool("REPLAY_DEMO", false),
		"Run the in-process producer/sampler demo without NATS (env: REPLAY_DEMO)")

	fs.IntVar(&cfg.SampleSize, "sample", 0,
		"Request a sample of N observations from a running service, print it and exit")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("REPLAY_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: REPLAY_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Print the effective configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
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

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.SampleSize < 0 {
		return fmt.Errorf("invalid sample size: %d", cfg.SampleSize)
	}

	if cfg.Demo && cfg.SampleSize > 0 {
		return fmt.Errorf("--demo and --sample are mutually exclusive")
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintf(out, `%s - uniform-sampling replay memory over NATS

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(out, `
Examples:
  # Serve ingest and sample subjects from a config file
  %s --config=/etc/replay/config.yaml

  # Fill a buffer locally and log periodic samples
  %s --demo --log-format=text

  # Ask a running service for 16 observations
  %s --sample=16

  # Print the effective configuration
  REPLAY_BUFFER_CAPACITY=50000 %s --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
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

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
