package pool

import (
	"fmt"
	"time"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultMaxSize        = 10
	DefaultMinSize        = 2
	DefaultIdleTimeout    = 10 * time.Second
	DefaultAcquireTimeout = 5 * time.Second
	DefaultReapInterval   = time.Second
	defaultEventBuffer    = 256
	defaultCloseTimeout   = 5 * time.Second
)

// Config bounds the pool.
type Config struct {
	// MaxSize caps open connections, idle and checked out together.
	MaxSize int
	// MinSize is the number of open connections the idle reaper never goes below.
	MinSize int
	// IdleTimeout closes connections idle for longer. Negative disables reaping.
	IdleTimeout time.Duration
	// AcquireTimeout bounds how long Acquire queues and dials.
	AcquireTimeout time.Duration
	// ReapInterval is how often the maintainer looks for expired idle connections.
	ReapInterval time.Duration
}

// DefaultConfig returns the stock pool sizing.
func DefaultConfig() Config {
	return Config{
		MaxSize:        DefaultMaxSize,
		MinSize:        DefaultMinSize,
		IdleTimeout:    DefaultIdleTimeout,
		AcquireTimeout: DefaultAcquireTimeout,
		ReapInterval:   DefaultReapInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}

	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}

	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}

	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}

	return c
}

// Validate checks the sizing invariants.
func (c Config) Validate() error {
	switch {
	case c.MaxSize < 1:
		return fmt.Errorf("%w: max size must be at least 1, got %d", ErrInvalidConfig, c.MaxSize)
	case c.MinSize < 0:
		return fmt.Errorf("%w: min size must not be negative, got %d", ErrInvalidConfig, c.MinSize)
	case c.MinSize > c.MaxSize:
		return fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidConfig, c.MinSize, c.MaxSize)
	case c.AcquireTimeout < 0:
		return fmt.Errorf("%w: acquire timeout must not be negative", ErrInvalidConfig)
	}

	return nil
}
