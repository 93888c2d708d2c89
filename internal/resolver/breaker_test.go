package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/pkg/schema"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour, HalfOpenMax: 1})

	require.NoError(t, b.AllowRequest())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, CircuitClosed, b.State())

	state := b.RecordFailure()
	assert.Equal(t, CircuitOpen, state)

	err := b.AllowRequest()
	require.Error(t, err)
	var aerr *schema.ActisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, schema.ErrCodeCircuitOpen, aerr.Code)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, HalfOpenMax: 1})

	b.RecordFailure()
	assert.Equal(t, CircuitOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, CircuitHalfOpen, b.State())

	// One test request passes, the second is rejected.
	require.NoError(t, b.AllowRequest())
	require.Error(t, b.AllowRequest())
}

func TestBreaker_SuccessCloses(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, HalfOpenMax: 1})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.AllowRequest())

	b.RecordSuccess()
	assert.Equal(t, CircuitClosed, b.State())
	require.NoError(t, b.AllowRequest())
}

func TestBreaker_FailureInHalfOpenReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, HalfOpenMax: 1})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.AllowRequest())

	assert.Equal(t, CircuitOpen, b.RecordFailure())
}

func TestIsRetryableError_Basic(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(errors.New("connection refused")))
	assert.True(t, IsRetryableError(schema.NewError(schema.ErrCodeResolution, "transient")))
	assert.False(t, IsRetryableError(schema.NewError(schema.ErrCodeValidation, "bad input")))
	assert.False(t, IsRetryableError(schema.NewError(schema.ErrCodeExecution, "final")))
}

func TestComputeBackoff_Basic(t *testing.T) {
	p := RetryPolicy{Max: 5, Delay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, ComputeBackoff(p, 0))
	assert.Equal(t, 200*time.Millisecond, ComputeBackoff(p, 1))
	assert.Equal(t, 400*time.Millisecond, ComputeBackoff(p, 2))
	// Capped.
	assert.Equal(t, 500*time.Millisecond, ComputeBackoff(p, 3))
	assert.Equal(t, time.Duration(0), ComputeBackoff(RetryPolicy{}, 2))
}

func TestWaitForBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitForBackoff(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
