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

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"context cancelled", context.Canceled, false},
		{"retryable code", schema.NewError(schema.ErrCodeResolution, "upstream 503"), true},
		{"non-retryable code", schema.NewError(schema.ErrCodeValidation, "bad intent"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"plain error defaults retryable", errors.New("something odd"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryableError(tc.err))
		})
	}
}

func TestComputeBackoff(t *testing.T) {
	policy := RetryPolicy{Delay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, ComputeBackoff(policy, 0))
	assert.Equal(t, 200*time.Millisecond, ComputeBackoff(policy, 1))
	assert.Equal(t, 400*time.Millisecond, ComputeBackoff(policy, 2))
	// Capped.
	assert.Equal(t, 500*time.Millisecond, ComputeBackoff(policy, 3))
	assert.Equal(t, 500*time.Millisecond, ComputeBackoff(policy, 10))
}

func TestComputeBackoffZeroDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), ComputeBackoff(RetryPolicy{}, 5))
}

func TestWaitForBackoffCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForBackoff(ctx, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForBackoffZero(t *testing.T) {
	require.NoError(t, WaitForBackoff(context.Background(), 0))
}
