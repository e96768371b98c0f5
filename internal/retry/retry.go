package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Func defines the function signature for a retryable operation.
type Func func(ctx context.Context) error

// Config defines the configuration for the retry mechanism.
type Config struct {
	Enable      bool          `mapstructure:"enable"`       // Enable retry
	Attempts    int           `mapstructure:"attempts"`     // Total attempts including the first
	Interval    time.Duration `mapstructure:"interval"`     // Delay before the first retry
	MaxInterval time.Duration `mapstructure:"max_interval"` // Backoff ceiling
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		Enable:      true,
		Attempts:    5,
		Interval:    500 * time.Millisecond,
		MaxInterval: 10 * time.Second,
	}
}

// Validate validates the retry configuration.
func (cfg *Config) Validate() error {
	if cfg == nil || !cfg.Enable {
		return nil
	}
	if cfg.Attempts <= 0 {
		return errors.New("attempts must be greater than zero")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if cfg.MaxInterval != 0 && cfg.MaxInterval < cfg.Interval {
		return errors.New("max_interval must not be below interval")
	}
	return nil
}

// Execute runs op, retrying transient failures with exponential backoff.
// The delay doubles after each attempt up to MaxInterval. A canceled
// context stops the retries immediately.
func Execute(ctx context.Context, cfg *Config, op Func) error {
	if cfg == nil || !cfg.Enable {
		return op(ctx)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	interval := cfg.Interval
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := op(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if cfg.MaxInterval != 0 && interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.Attempts, lastErr)
}
