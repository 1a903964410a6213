// Package resilience wraps sony/gobreaker so a repeatedly-failing Postgres
// round trip (single or bulk run insert) trips open instead of
// retrying into a stalled CLI process.
package resilience

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig defines configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	MaxFailures   uint32
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultConfig returns sensible defaults for a circuit breaker guarding a
// database round trip.
func DefaultConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		MaxFailures: 5,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("[CircuitBreaker:%s] state changed: %s -> %s", name, from, to)
		},
	}
}

// CircuitBreaker wraps gobreaker with configuration defaults suited to
// request-response database calls.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && (counts.ConsecutiveFailures >= config.MaxFailures || failureRatio >= 0.6)
		},
		OnStateChange: config.OnStateChange,
	}

	return &CircuitBreaker{
		cb:   gobreaker.NewCircuitBreaker[any](settings),
		name: config.Name,
	}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	result, err := cb.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("circuit breaker %s: %w", cb.name, err)
	}
	return result, nil
}

// ExecuteWithContext runs fn with circuit breaker protection, failing fast
// if ctx is already done.
func (cb *CircuitBreaker) ExecuteWithContext(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cb.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Counts returns the current request/failure counts.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.cb.Counts()
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
