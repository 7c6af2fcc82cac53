package dbguard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/salespulse/lib-dbguard/dbguard/backoff"
	"github.com/salespulse/lib-dbguard/dbguard/circuitbreaker"
	"github.com/salespulse/lib-dbguard/dbguard/executor"
	"github.com/salespulse/lib-dbguard/dbguard/pool"
	"github.com/salespulse/lib-dbguard/dbguard/zap"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid dbguard config")

// Config is the process configuration. Durations are in milliseconds.
//
// DatabaseURL is not required here: a missing connection string fails the
// first query, not startup.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`

	PoolMaxSize          int   `env:"DB_POOL_MAX_SIZE" validate:"min=1"`
	PoolMinSize          int   `env:"DB_POOL_MIN_SIZE" validate:"min=0,ltefield=PoolMaxSize"`
	PoolIdleTimeoutMS    int64 `env:"DB_POOL_IDLE_TIMEOUT_MS"`
	PoolAcquireTimeoutMS int64 `env:"DB_POOL_ACQUIRE_TIMEOUT_MS" validate:"min=1"`

	OperationTimeoutMS int64 `env:"DB_OPERATION_TIMEOUT_MS" validate:"min=1"`

	BreakerErrorThresholdPercentage float64 `env:"DB_BREAKER_ERROR_THRESHOLD_PERCENTAGE" validate:"gt=0,lte=100"`
	BreakerResetTimeoutMS           int64   `env:"DB_BREAKER_RESET_TIMEOUT_MS" validate:"min=1"`
	BreakerWindowMS                 int64   `env:"DB_BREAKER_WINDOW_MS" validate:"min=1"`
	BreakerVolumeThreshold          uint32  `env:"DB_BREAKER_VOLUME_THRESHOLD" validate:"min=0"`

	RetryMaxAttempts   int   `env:"DB_RETRY_MAX_ATTEMPTS" validate:"min=1"`
	RetryBackoffBaseMS int64 `env:"DB_RETRY_BACKOFF_BASE_MS" validate:"min=0"`

	ServerAddress string `env:"SERVER_ADDRESS" validate:"required"`

	EnvName  string `env:"ENV_NAME" validate:"oneof=production staging development local"`
	LogLevel string `env:"LOG_LEVEL"`

	EnableTelemetry bool   `env:"ENABLE_TELEMETRY"`
	OtelEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"required_if=EnableTelemetry true"`
	OtelLibraryName string `env:"OTEL_LIBRARY_NAME" validate:"required"`
	OtelServiceName string `env:"OTEL_SERVICE_NAME" validate:"required"`
	Version         string `env:"VERSION"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PoolMaxSize:                     pool.DefaultMaxSize,
		PoolMinSize:                     pool.DefaultMinSize,
		PoolIdleTimeoutMS:               pool.DefaultIdleTimeout.Milliseconds(),
		PoolAcquireTimeoutMS:            pool.DefaultAcquireTimeout.Milliseconds(),
		OperationTimeoutMS:              executor.DefaultOperationTimeout.Milliseconds(),
		BreakerErrorThresholdPercentage: 50,
		BreakerResetTimeoutMS:           30000,
		BreakerWindowMS:                 10000,
		BreakerVolumeThreshold:          0,
		RetryMaxAttempts:                backoff.DefaultMaxAttempts,
		RetryBackoffBaseMS:              backoff.DefaultBase.Milliseconds(),
		ServerAddress:                   ":8080",
		EnvName:                         string(zap.EnvironmentDevelopment),
		OtelLibraryName:                 "github.com/salespulse/lib-dbguard",
		OtelServiceName:                 "dbguard",
		Version:                         "0.0.0",
	}
}

// LoadConfig starts from DefaultConfig, overlays the environment and validates.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if err := SetConfigFromEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	return validate
}

// Validate checks the `validate` tags. The first failing field is reported by
// its environment variable name.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]

		return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, envName(fe.StructField()), fe.Tag())
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}

func envName(structField string) string {
	if f, ok := configFields[structField]; ok {
		return f
	}

	return structField
}

var configFields = func() map[string]string {
	m := make(map[string]string)

	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag := f.Tag.Get("env"); tag != "" {
			m[f.Name] = tag
		}
	}

	return m
}()

// IsProduction reports whether error details must be redacted.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.EnvName, string(zap.EnvironmentProduction))
}

// PoolConfig maps the pool section.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		MaxSize:        c.PoolMaxSize,
		MinSize:        c.PoolMinSize,
		IdleTimeout:    ms(c.PoolIdleTimeoutMS),
		AcquireTimeout: ms(c.PoolAcquireTimeoutMS),
	}
}

// BreakerConfig maps the breaker section.
func (c *Config) BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		ErrorThresholdPercentage: c.BreakerErrorThresholdPercentage,
		ResetTimeout:             ms(c.BreakerResetTimeoutMS),
		Window:                   ms(c.BreakerWindowMS),
		VolumeThreshold:          c.BreakerVolumeThreshold,
		HalfOpenMaxRequests:      1,
	}
}

// ExecutorConfig maps the operation timeout and retry policy.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		OperationTimeout: ms(c.OperationTimeoutMS),
		Retry:            backoff.NewExponentialPolicy(c.RetryMaxAttempts, ms(c.RetryBackoffBaseMS)),
		Production:       c.IsProduction(),
	}
}

// LoggerConfig maps the logger profile.
func (c *Config) LoggerConfig() zap.Config {
	return zap.Config{
		Environment:     zap.Environment(strings.ToLower(c.EnvName)),
		Level:           c.LogLevel,
		OTelLibraryName: c.OtelLibraryName,
	}
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
