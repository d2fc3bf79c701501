// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cfg := DefaultCircuitBreakerConfig("detector")
	cfg.FailureThreshold = 2
	cfg.Cooldown = 10 * time.Second
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb
}

func failing(ctx context.Context) error {
	return ClassifyHTTPStatus(http.StatusServiceUnavailable, "")
}

func succeeding(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.True(t, IsCircuitBreakerError(err))
	assert.False(t, called)
	assert.False(t, IsRetryable(err))
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	require.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())

	// the failure count starts over after recovery
	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	clock.t = clock.t.Add(11 * time.Second)

	require.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Unix(1000, 0)})
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return ClassifyHTTPStatus(http.StatusBadRequest, "")
		})
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var transitions []string
	cfg := DefaultCircuitBreakerConfig("detector")
	cfg.FailureThreshold = 1
	cfg.OnStateChange = func(name string, from, to CircuitBreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now

	_ = cb.Execute(context.Background(), failing)
	clock.t = clock.t.Add(cfg.Cooldown)
	require.NoError(t, cb.Execute(context.Background(), succeeding))

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}

func TestCircuitBreaker_OneTrialCallWhenHalfOpen(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	clock.t = clock.t.Add(11 * time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		assert.Equal(t, StateHalfOpen, cb.State())
		second := cb.Execute(ctx, succeeding)
		assert.ErrorIs(t, second, ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithCircuitBreaker_StopsWhenOpen(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("detector")
	cfg.FailureThreshold = 2
	cb := NewCircuitBreaker(cfg)

	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), fastRetry(5), cb, func(ctx context.Context) error {
		calls++
		return failing(ctx)
	})

	assert.True(t, IsCircuitBreakerError(err))
	assert.Equal(t, 2, calls)
}
