package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://api.devnet.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, "info", cfg.LogLevel)  // Default
	assert.Equal(t, "text", cfg.LogFormat) // Default
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint32(2_000_000), cfg.ComputeUnitLimit)
	assert.Equal(t, 10.0, cfg.RPCRequestsPerSecond)
	assert.False(t, cfg.SkipPreflight)
	assert.Zero(t, cfg.BatchSize)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Error(t, cfg.RequireWallet())
}

func TestLoad_MissingSolanaRPCURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
	os.Setenv("WALLET", "/tmp/id.json")
	os.Setenv("PROGRAM_ID", "mintjBhypUqvbKvCePPsQN55AYBY3DwFWpuR5PDURdH")
	os.Setenv("RPC_REQUESTS_PER_SECOND", "2.5")
	os.Setenv("SKIP_PREFLIGHT", "true")
	os.Setenv("CONFIRM_TIMEOUT", "90s")
	os.Setenv("COMPUTE_UNIT_LIMIT", "400000")
	os.Setenv("BATCH_SIZE", "4")
	os.Setenv("PARALLEL_BATCH_SIZE", "8")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	os.Setenv("DATABASE_URL", "postgres://localhost/mintgen")
	os.Setenv("NATS_URL", "nats://localhost:4222")
	os.Setenv("METRICS_ADDR", ":9090")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/id.json", cfg.WalletPath)
	assert.NoError(t, cfg.RequireWallet())
	assert.Equal(t, "mintjBhypUqvbKvCePPsQN55AYBY3DwFWpuR5PDURdH", cfg.ProgramID)
	assert.Equal(t, 2.5, cfg.RPCRequestsPerSecond)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint32(400_000), cfg.ComputeUnitLimit)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 8, cfg.ParallelBatchSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost/mintgen", cfg.DatabaseURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"duration", "CONFIRM_TIMEOUT", "soon", "invalid duration"},
		{"integer", "BATCH_SIZE", "six", "invalid integer"},
		{"number", "RPC_REQUESTS_PER_SECOND", "fast", "invalid number"},
		{"boolean", "SKIP_PREFLIGHT", "maybe", "invalid boolean"},
		{"negative compute", "COMPUTE_UNIT_LIMIT", "-1", "cannot be negative"},
		{"log format", "LOG_FORMAT", "xml", "LogFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
			os.Setenv(tt.key, tt.value)
			defer cleanupEnv()

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SolanaRPCURL:     "http://localhost:8899",
			ConfirmTimeout:   30 * time.Second,
			ComputeUnitLimit: 200_000,
			LogLevel:         "info",
			LogFormat:        "text",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing rpc url", func(c *Config) { c.SolanaRPCURL = "" }, "SolanaRPCURL is required"},
		{"short timeout", func(c *Config) { c.ConfirmTimeout = time.Millisecond }, "ConfirmTimeout"},
		{"zero compute", func(c *Config) { c.ComputeUnitLimit = 0 }, "ComputeUnitLimit"},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }, "BatchSize"},
		{"negative parallel", func(c *Config) { c.ParallelBatchSize = -1 }, "ParallelBatchSize"},
		{"negative rps", func(c *Config) { c.RPCRequestsPerSecond = -1 }, "RPCRequestsPerSecond"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func cleanupEnv() {
	for _, key := range []string{
		"SOLANA_RPC_URL",
		"WALLET",
		"PROGRAM_ID",
		"RPC_REQUESTS_PER_SECOND",
		"SKIP_PREFLIGHT",
		"CONFIRM_TIMEOUT",
		"COMPUTE_UNIT_LIMIT",
		"BATCH_SIZE",
		"PARALLEL_BATCH_SIZE",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"NATS_URL",
		"METRICS_ADDR",
	} {
		os.Unsetenv(key)
	}
}
