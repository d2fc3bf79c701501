// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState is the state of a detector breaker
type CircuitBreakerState int

const (
	StateClosed   CircuitBreakerState = iota // calls pass through
	StateOpen                                // calls fail fast
	StateHalfOpen                            // one trial call is allowed
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig configures a breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	// Cooldown is how long the breaker stays open before a trial call
	Cooldown      time.Duration
	IsFailure     func(error) bool
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns the breaker settings for a detector
// endpoint. A detector that is down should stop costing every scan its full
// retry budget.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         15 * time.Second,
		IsFailure: func(err error) bool {
			// a rejected request says nothing about the detector's health
			return err != nil && ClassifyError(err).Retryable
		},
	}
}

// ErrCircuitOpen is wrapped by every call the breaker refuses
var ErrCircuitOpen = errors.New("detector circuit is open")

// CircuitBreaker stops calling a detector after repeated failures and lets a
// single trial call through once the cooldown has passed
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitBreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		wait := cb.config.Cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%s: %w after %d failures, retry in %v",
				cb.config.Name, ErrCircuitOpen, cb.failures, wait.Round(time.Second))
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
	case StateHalfOpen:
		if cb.trial {
			return fmt.Errorf("%s: %w while a trial call is running", cb.config.Name, ErrCircuitOpen)
		}
		cb.trial = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trial = false

	if !cb.config.IsFailure(err) {
		cb.failures = 0
		cb.setState(StateClosed)
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.openedAt = cb.now()
		cb.setState(StateOpen)
	}
}

// setState changes the state and reports the transition; caller holds mu
func (cb *CircuitBreaker) setState(to CircuitBreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// IsCircuitBreakerError reports whether err was returned by an open breaker
func IsCircuitBreakerError(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
