// Package retry implements call-site retry policies for backend calls.
//
// The structured generation client never retries on its own. Each caller
// (question generation, answer collection) owns a Policy whose default is a
// single attempt, so adding retries is a configuration change rather than a
// behavior hidden inside the client.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
)

// Policy validation errors.
var (
	errMaxAttemptsInvalid     = errors.New("max_attempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initial_interval must be >= 0")
	errMaxIntervalInvalid     = errors.New("max_interval must be >= initial_interval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
)

// Policy describes how many times a call site attempts an operation and how
// long it waits between attempts.
type Policy struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier"`
	Jitter          bool          `json:"jitter" yaml:"jitter"`
}

// DefaultPolicy returns the single-attempt policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     1,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, p.MaxAttempts)
	}
	if p.MaxAttempts == 1 {
		return nil
	}
	if p.InitialInterval < 0 {
		return fmt.Errorf("%w, got %v", errInitialIntervalInvalid, p.InitialInterval)
	}
	if p.MaxInterval < p.InitialInterval {
		return fmt.Errorf("%w, max_interval: %v, initial_interval: %v",
			errMaxIntervalInvalid, p.MaxInterval, p.InitialInterval)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, p.Multiplier)
	}
	return nil
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy's
// attempts are exhausted. With a single attempt the op's error is returned
// unchanged; otherwise the final error also matches ErrMaxRetriesExceeded.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)
	logger := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", lastErr, err)
			}
			return zero, err
		}

		out, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", "attempt", attempt)
			}
			return out, nil
		}
		lastErr = err

		if attempts == 1 {
			return zero, err
		}
		if !llmerrors.IsRetryable(err) {
			logger.Debug("non-retryable error", "attempt", attempt, "error", err)
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt, err)
		logger.Warn("retrying operation",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %w", lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", llmerrors.ErrMaxRetriesExceeded, attempts, lastErr)
}

// Backoff computes the delay after the given attempt using exponential growth
// capped at MaxInterval and optional full jitter. A backend-requested
// Retry-After delay takes precedence.
func (p Policy) Backoff(attempt int, err error) time.Duration {
	if ra := llmerrors.RetryAfter(err); ra > 0 {
		return ra
	}

	backoff := p.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	multiplier := max(p.Multiplier, 1.0)
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if p.MaxInterval > 0 && backoff > p.MaxInterval {
			backoff = p.MaxInterval
			break
		}
	}

	if p.Jitter {
		// Full jitter: uniform in [0, backoff].
		return time.Duration(rand.Int64N(int64(backoff) + 1)) // #nosec G404 -- non-cryptographic jitter
	}
	return backoff
}
