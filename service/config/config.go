package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// Command-line flags override individual fields after loading.
type Config struct {
	// Solana configuration
	SolanaRPCURL         string
	WalletPath           string // keypair file; required for commands that sign
	ProgramID            string // empty selects the default deployment
	RPCRequestsPerSecond float64
	SkipPreflight        bool
	ConfirmTimeout       time.Duration
	ComputeUnitLimit     uint32

	// Batch configuration; zero selects the command's own default
	BatchSize         int
	ParallelBatchSize int

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Optional sinks
	DatabaseURL string
	NATSURL     string
	MetricsAddr string
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.WalletPath = os.Getenv("WALLET")
	cfg.ProgramID = os.Getenv("PROGRAM_ID")

	rps, err := parseFloat("RPC_REQUESTS_PER_SECOND", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCRequestsPerSecond = rps
	}

	skip, err := parseBool("SKIP_PREFLIGHT", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SkipPreflight = skip
	}

	timeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = timeout
	}

	units, err := parseInt("COMPUTE_UNIT_LIMIT", 2_000_000)
	if err != nil {
		errs = append(errs, err)
	} else if units < 0 {
		errs = append(errs, fmt.Errorf("COMPUTE_UNIT_LIMIT cannot be negative"))
	} else {
		cfg.ComputeUnitLimit = uint32(units)
	}

	if cfg.BatchSize, err = parseInt("BATCH_SIZE", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.ParallelBatchSize, err = parseInt("PARALLEL_BATCH_SIZE", 0); err != nil {
		errs = append(errs, err)
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "text")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.RPCRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("RPCRequestsPerSecond cannot be negative"))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if c.ComputeUnitLimit == 0 {
		errs = append(errs, fmt.Errorf("ComputeUnitLimit must be greater than 0"))
	}

	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("BatchSize cannot be negative"))
	}

	if c.ParallelBatchSize < 0 {
		errs = append(errs, fmt.Errorf("ParallelBatchSize cannot be negative"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LogLevel must be one of debug, info, warn, error"))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LogFormat must be text or json"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RequireWallet reports an error when no signing keypair is configured.
func (c *Config) RequireWallet() error {
	if c.WalletPath == "" {
		return fmt.Errorf("WALLET is required (set WALLET env var or use --wallet)")
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
