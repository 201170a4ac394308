package probe

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	pkgerrors "docprobe/pkg/errors"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int           `yaml:"maxAttempts"`   // Total attempts, the first included
	BaseDelay     time.Duration `yaml:"baseDelay"`     // Delay before the first retry
	MaxDelay      time.Duration `yaml:"maxDelay"`      // Upper bound for any delay
	BackoffFactor float64       `yaml:"backoffFactor"` // Exponential backoff multiplier
	JitterFactor  float64       `yaml:"jitterFactor"`  // Fraction of the delay randomized either way
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func(ctx context.Context) error

// RetryWithBackoff runs operation until it succeeds, fails with an error
// that is not retryable, or MaxAttempts is used up. Only transient service
// errors are retried; a conflict is an answer, not a fault.
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation RetryableOperation) (int, error) {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := pkgerrors.FromContext(ctx, "retry"); err != nil {
			return attempt, err
		}

		err := operation(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if !pkgerrors.IsRetryable(err) {
			return attempt + 1, err
		}

		// Don't wait after the last attempt
		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(config.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, pkgerrors.NewCancelledError("retry", ctx.Err())
		case <-timer.C:
		}
	}

	return config.MaxAttempts, fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for the given attempt number
func (c RetryConfig) calculateDelay(attempt int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt))

	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
