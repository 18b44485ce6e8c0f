package embedder

import (
	"context"
	"time"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts, including the first
	BaseDelay  time.Duration // Delay after the first failed attempt
	MaxDelay   time.Duration // Upper bound on any single delay, 0 for none
	Multiplier float64       // Exponential backoff multiplier

	// OnRetry is called before sleeping ahead of another attempt
	OnRetry func(attempt int, err error)
}

// Retry defaults
const (
	DefaultMaxRetries  = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	BackoffMultiplier  = 2.0
	DefaultCallTimeout = 30 * time.Second
)

// DefaultRetryConfig returns sensible defaults for API retry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: BackoffMultiplier,
	}
}

// Delay returns the wait after the given zero-based failed attempt:
// BaseDelay × Multiplier^attempt, capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = BackoffMultiplier
	}
	d := float64(c.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= mult
		if c.MaxDelay > 0 && d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// RetryWithBackoff executes fn with exponential backoff between attempts.
// Non-retryable errors and context cancellation end the loop early; otherwise
// the last error is returned once the attempts are exhausted.
func RetryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T

	attempts := config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			if config.OnRetry != nil {
				config.OnRetry(attempt+1, err)
			}
			timer := time.NewTimer(config.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}
