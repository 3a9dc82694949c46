package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
// With Fixed set, every attempt waits BaseDelay; otherwise the delay doubles.
// Retryable, when set, stops retrying as soon as it returns false.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Fixed       bool
	Retryable   func(error) bool
	Logger      *Logger
}

// Do executes fn with retry logic.
func (r *RetryConfig) Do(operationName string, fn func() error) error {
	return r.DoContext(context.Background(), operationName, func(context.Context) error { return fn() })
}

// DoContext is Do with cancellation: a cancelled ctx stops waiting between attempts.
func (r *RetryConfig) DoContext(ctx context.Context, operationName string, fn func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return lastErr
		}

		if attempt < attempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, attempt, lastErr)
			case <-time.After(delay):
			}
			if !r.Fixed {
				delay *= 2
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}
