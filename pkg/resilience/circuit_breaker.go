// Package resilience provides circuit breaking and retry primitives used
// around database and cache access.
package resilience

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold    int           // Consecutive failures before tripping
	ResetTimeout        time.Duration // Time in open state before probing again
	SuccessThreshold    int           // Successes in half-open needed to close
	TimeoutThreshold    time.Duration // Per-call timeout, 0 disables
	MaxRequestsHalfOpen int           // Max concurrent probes in half-open state

	// IsSuccessful decides whether an error counts against the failure
	// threshold. Errors that are expected outcomes of a healthy backend
	// (a missed lookup, a lost optimistic-lock race) should report true
	// so they never open the breaker. Nil counts every error as a
	// failure.
	IsSuccessful func(err error) bool
}

// CircuitBreaker wraps gobreaker with logging and metrics
type CircuitBreaker struct {
	name    string
	config  CircuitBreakerConfig
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewCircuitBreaker creates a named circuit breaker. State transitions are
// logged and counted; zero-value config fields fall back to safe defaults.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MaxRequestsHalfOpen <= 0 {
		config.MaxRequestsHalfOpen = 1
	}

	breaker := &CircuitBreaker{
		name:    name,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxRequestsHalfOpen),
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.FailureThreshold)
		},
		OnStateChange: breaker.onStateChange,
		IsSuccessful:  config.IsSuccessful,
	}
	breaker.cb = gobreaker.NewCircuitBreaker(settings)

	return breaker
}

func (b *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	if b.logger != nil {
		b.logger.Info("Circuit breaker state changed", map[string]interface{}{
			"name": name,
			"from": from.String(),
			"to":   to.String(),
		})
	}
	if b.metrics != nil {
		b.metrics.IncrementCounterWithLabels("circuit_breaker_state_changes", 1, map[string]string{
			"name": name,
			"to":   to.String(),
		})
	}
}

// Execute runs fn through the circuit breaker. Rejected calls return
// ErrCircuitOpen; the underlying error is passed through otherwise.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	call := fn
	if b.config.TimeoutThreshold > 0 {
		call = func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, b.config.TimeoutThreshold)
			defer cancel()

			type callResult struct {
				value interface{}
				err   error
			}
			done := make(chan callResult, 1)
			go func() {
				v, err := fn()
				done <- callResult{value: v, err: err}
			}()

			select {
			case res := <-done:
				return res.value, res.err
			case <-callCtx.Done():
				return nil, callCtx.Err()
			}
		}
	}

	result, err := b.cb.Execute(call)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		if b.metrics != nil {
			b.metrics.IncrementCounterWithLabels("circuit_breaker_rejections", 1, map[string]string{
				"name": b.name,
			})
		}
		return nil, errors.Wrap(ErrCircuitOpen, b.name)
	}
	return result, err
}

// State reports the current breaker state as a string.
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker name.
func (b *CircuitBreaker) Name() string {
	return b.name
}
