// Package retry provides bounded retry with exponential backoff for
// source calls. Only errors the taxonomy marks retryable are retried.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	errs "cheeseagent/pkg/errors"
	"cheeseagent/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// Retrier executes operations with exponential backoff between attempts.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	jitter      float64
	logger      logger.Logger
}

// New creates a retrier allowing maxAttempts total attempts. Values
// below 1 mean a single attempt, no retries.
func New(maxAttempts int) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		multiplier:  2.0,
		jitter:      0.1,
		logger:      logger.GetLogger(),
	}
}

// WithDelays returns a copy of the retrier with custom backoff bounds.
func (r *Retrier) WithDelays(base, max time.Duration) *Retrier {
	copied := *r
	copied.baseDelay = base
	copied.maxDelay = max
	return &copied
}

// Do executes op, retrying retryable failures until the attempt budget
// or the context runs out.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				r.logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !errs.IsRetryable(errs.TypeOf(err)) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := r.nextDelay(attempt)
		r.logger.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": r.maxAttempts,
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
		})

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.maxAttempts, lastErr)
}

// nextDelay computes the backoff for the given attempt with jitter.
func (r *Retrier) nextDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.multiplier
	}
	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}
	// Jitter spreads simultaneous clients apart.
	delay += delay * r.jitter * (rand.Float64()*2 - 1)
	return time.Duration(delay)
}
