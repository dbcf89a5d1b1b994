package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// RetryConfig defines configuration for retries
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	RetryIfFn       func(error) bool
}

// DefaultRetryConfig returns a retry configuration suitable for transient
// infrastructure failures such as a database that is still starting up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Retry retries operation with exponential backoff until it succeeds, the
// retry budget is spent, or ctx is done. When RetryIfFn is set, errors it
// rejects stop the retries immediately.
func Retry(ctx context.Context, config RetryConfig, operation func() error) error {
	return RetryNotify(ctx, config, operation, nil)
}

// RetryNotify is Retry with a logger that records each failed attempt.
func RetryNotify(ctx context.Context, config RetryConfig, operation func() error, logger observability.Logger) error {
	b := backoff.NewExponentialBackOff()
	if config.InitialInterval > 0 {
		b.InitialInterval = config.InitialInterval
	}
	if config.MaxInterval > 0 {
		b.MaxInterval = config.MaxInterval
	}
	if config.Multiplier > 0 {
		b.Multiplier = config.Multiplier
	}
	b.MaxElapsedTime = config.MaxElapsedTime

	var policy backoff.BackOff = b
	if config.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(config.MaxRetries))
	}
	policy = backoff.WithContext(policy, ctx)

	wrapped := func() error {
		err := operation()
		if err != nil && config.RetryIfFn != nil && !config.RetryIfFn(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if logger != nil {
			logger.Warn("Operation failed, retrying", map[string]interface{}{
				"error":   err.Error(),
				"wait_ms": wait.Milliseconds(),
			})
		}
	}

	return backoff.RetryNotify(wrapped, policy, notify)
}

// RetryWithResult retries operation with exponential backoff and returns
// its result once it succeeds.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, config, func() error {
		var opErr error
		result, opErr = operation()
		return opErr
	})
	return result, err
}
