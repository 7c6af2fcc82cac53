//go:build unit

package dbguard

import (
	"testing"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/zap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "DB_POOL_MAX_SIZE", "DB_POOL_MIN_SIZE", "DB_OPERATION_TIMEOUT_MS",
		"DB_RETRY_MAX_ATTEMPTS", "ENV_NAME", "ENABLE_TELEMETRY", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	p := cfg.PoolConfig()
	assert.Equal(t, 10, p.MaxSize)
	assert.Equal(t, 2, p.MinSize)
	assert.Equal(t, 10*time.Second, p.IdleTimeout)
	assert.Equal(t, 5*time.Second, p.AcquireTimeout)

	b := cfg.BreakerConfig()
	assert.InDelta(t, 50.0, b.ErrorThresholdPercentage, 0.001)
	assert.Equal(t, 30*time.Second, b.ResetTimeout)
	assert.Equal(t, 10*time.Second, b.Window)
	assert.Equal(t, uint32(0), b.VolumeThreshold)

	e := cfg.ExecutorConfig()
	assert.Equal(t, 30*time.Second, e.OperationTimeout)
	assert.Equal(t, 3, e.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, e.Retry.DelayFor(1))
	assert.Equal(t, 4*time.Second, e.Retry.DelayFor(2))
	assert.False(t, e.Production)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddress)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/sales")
	t.Setenv("DB_POOL_MAX_SIZE", "20")
	t.Setenv("DB_POOL_MIN_SIZE", "5")
	t.Setenv("DB_BREAKER_ERROR_THRESHOLD_PERCENTAGE", "25.5")
	t.Setenv("DB_RETRY_BACKOFF_BASE_MS", "100")
	t.Setenv("ENV_NAME", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:secret@db:5432/sales", cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.PoolConfig().MaxSize)
	assert.Equal(t, 5, cfg.PoolConfig().MinSize)
	assert.InDelta(t, 25.5, cfg.BreakerConfig().ErrorThresholdPercentage, 0.001)
	assert.Equal(t, 200*time.Millisecond, cfg.ExecutorConfig().Retry.DelayFor(1))
	assert.True(t, cfg.ExecutorConfig().Production)
	assert.Equal(t, zap.EnvironmentProduction, cfg.LoggerConfig().Environment)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantEnv string
	}{
		{name: "min above max", mutate: func(c *Config) { c.PoolMinSize = 11 }, wantEnv: "DB_POOL_MIN_SIZE"},
		{name: "zero max", mutate: func(c *Config) { c.PoolMaxSize = 0 }, wantEnv: "DB_POOL_MAX_SIZE"},
		{name: "threshold above 100", mutate: func(c *Config) { c.BreakerErrorThresholdPercentage = 120 }, wantEnv: "DB_BREAKER_ERROR_THRESHOLD_PERCENTAGE"},
		{name: "no attempts", mutate: func(c *Config) { c.RetryMaxAttempts = 0 }, wantEnv: "DB_RETRY_MAX_ATTEMPTS"},
		{name: "unknown environment", mutate: func(c *Config) { c.EnvName = "qa" }, wantEnv: "ENV_NAME"},
		{name: "telemetry without endpoint", mutate: func(c *Config) { c.EnableTelemetry = true }, wantEnv: "OTEL_EXPORTER_OTLP_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantEnv)
		})
	}

	valid := DefaultConfig()
	assert.NoError(t, valid.Validate())
}

func TestLoadConfig_VolumeThresholdAcceptsZero(t *testing.T) {
	t.Setenv("DB_BREAKER_VOLUME_THRESHOLD", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.BreakerConfig().VolumeThreshold)

	t.Setenv("DB_BREAKER_VOLUME_THRESHOLD", "20")

	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), cfg.BreakerConfig().VolumeThreshold)
}

func TestLoadConfig_InvalidNumber(t *testing.T) {
	t.Setenv("DB_POOL_MAX_SIZE", "ten")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "DB_POOL_MAX_SIZE")
}
