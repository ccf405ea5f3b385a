package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChecks_AllCriticalPassing(t *testing.T) {
	ok := func(context.Context) error { return nil }
	results, ready := RunChecks(context.Background(), []Check{
		{Name: "database", Critical: true, Fn: ok},
		{Name: "cluster", Critical: true, Fn: ok},
	})

	assert.True(t, ready)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.OK)
		assert.NoError(t, r.Err)
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestRunChecks_CriticalFailureBlocksReadiness(t *testing.T) {
	results, ready := RunChecks(context.Background(), []Check{
		{Name: "database", Critical: true, Fn: func(context.Context) error { return errors.New("refused") }},
		{Name: "cache", Critical: false, Fn: func(context.Context) error { return nil }},
	})

	assert.False(t, ready)
	assert.False(t, results[0].OK)
	assert.True(t, results[1].OK)
}

func TestRunChecks_NonCriticalFailureIsAdvisory(t *testing.T) {
	results, ready := RunChecks(context.Background(), []Check{
		{Name: "database", Critical: true, Fn: func(context.Context) error { return nil }},
		{Name: "cache", Critical: false, Fn: func(context.Context) error { return errors.New("cold") }},
	})

	assert.True(t, ready)
	assert.False(t, results[1].OK)
	assert.Error(t, results[1].Err)
}

func TestRunChecks_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	flaky := func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	results, ready := RunChecks(context.Background(), []Check{
		{Name: "flaky", Critical: true, RetryCount: 3, Fn: flaky},
	})

	assert.True(t, ready)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestRunChecks_TimeoutBoundsEachAttempt(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	results, ready := RunChecks(context.Background(), []Check{
		{Name: "slow", Critical: true, Timeout: 20 * time.Millisecond, Fn: slow},
	})

	assert.False(t, ready)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}
