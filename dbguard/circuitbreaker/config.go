package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every breaker configuration validation failure.
var ErrInvalidConfig = errors.New("invalid circuit breaker config")

// Config holds breaker thresholds.
type Config struct {
	// ErrorThresholdPercentage trips the breaker when failures/requests*100 reaches it.
	ErrorThresholdPercentage float64
	// ResetTimeout is how long the breaker stays open before allowing a trial call.
	ResetTimeout time.Duration
	// Window is the closed-state statistics period. Zero keeps counts until the next transition.
	Window time.Duration
	// VolumeThreshold is the number of settled calls the rate is measured over
	// while a window is still short of it. Zero measures the rate from the first call.
	VolumeThreshold uint32
	// HalfOpenMaxRequests is the number of trial calls admitted while half-open.
	HalfOpenMaxRequests uint32
}

// DefaultConfig mirrors the database defaults: trip as soon as a failure puts
// the 10s window at 50%, then wait 30s before a single trial.
func DefaultConfig() Config {
	return Config{
		ErrorThresholdPercentage: 50,
		ResetTimeout:             30 * time.Second,
		Window:                   10 * time.Second,
		VolumeThreshold:          0,
		HalfOpenMaxRequests:      1,
	}
}

func (c Config) withDefaults() Config {
	if c.HalfOpenMaxRequests == 0 {
		c.HalfOpenMaxRequests = 1
	}

	return c
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	switch {
	case c.ErrorThresholdPercentage <= 0 || c.ErrorThresholdPercentage > 100:
		return fmt.Errorf("%w: error threshold percentage must be in (0, 100], got %v", ErrInvalidConfig, c.ErrorThresholdPercentage)
	case c.ResetTimeout <= 0:
		return fmt.Errorf("%w: reset timeout must be positive", ErrInvalidConfig)
	case c.Window < 0:
		return fmt.Errorf("%w: window must not be negative", ErrInvalidConfig)
	}

	return nil
}

// readyToTrip reports whether the window's failure rate warrants opening. It
// only runs after a failure. While the window is short of VolumeThreshold the
// missing calls count as successes, which makes the rate a lower bound of the
// rate at the threshold: the outcome does not depend on the order of calls.
func (c Config) readyToTrip(counts Counts) bool {
	if counts.TotalFailures == 0 {
		return false
	}

	settled := max(counts.Settled(), c.VolumeThreshold)

	return float64(counts.TotalFailures)*100/float64(settled) >= c.ErrorThresholdPercentage
}
