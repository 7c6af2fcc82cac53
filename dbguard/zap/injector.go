package zap

import (
	"errors"
	"fmt"
	"strings"

	logpkg "github.com/salespulse/lib-dbguard/dbguard/log"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger.Log adds one frame between the caller and zap.
const callerSkipFrames = 1

// Environment selects the logger profile, mirroring ENV_NAME.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
	EnvironmentLocal       Environment = "local"
)

func (e Environment) verbose() bool {
	return e == EnvironmentDevelopment || e == EnvironmentLocal
}

// Config is what New needs. Level overrides the environment default when set.
type Config struct {
	Environment     Environment
	Level           string
	OTelLibraryName string
}

func (c Config) validate() error {
	if c.OTelLibraryName == "" {
		return errors.New("OTelLibraryName is required")
	}

	switch c.Environment {
	case EnvironmentProduction, EnvironmentStaging, EnvironmentDevelopment, EnvironmentLocal:
		return nil
	}

	return fmt.Errorf("invalid environment %q", c.Environment)
}

// New builds a JSON logger whose entries are also exported through the
// OpenTelemetry log bridge under cfg.OTelLibraryName. Development and local
// default to debug, everything else to info.
func New(cfg Config) (*Logger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid zap config: %w", err)
	}

	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Environment.verbose() {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Encoding = "json"
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zcfg.Level = level
	zcfg.DisableStacktrace = true

	bridge := otelzap.NewCore(cfg.OTelLibraryName)

	built, err := zcfg.Build(
		zap.AddCallerSkip(callerSkipFrames),
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, bridge)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{base: built, level: level}, nil
}

func resolveLevel(cfg Config) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) == "" {
		if cfg.Environment.verbose() {
			return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
		}

		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}

	parsed, err := logpkg.ParseLevel(cfg.Level)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
	}

	return zap.NewAtomicLevelAt(toZapLevel(parsed)), nil
}
