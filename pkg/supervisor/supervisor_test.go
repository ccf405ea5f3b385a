package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_CleanReturnStopsTask(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32

	s.Go("oneshot", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, int32(1), runs.Load())
}

func TestGo_RestartsOnError(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	recovered := make(chan struct{})

	s.Go("flaky", func(context.Context) error {
		if runs.Add(1) < 2 {
			return errors.New("transient")
		}
		close(recovered)
		return nil
	})

	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not restarted after failure")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestGo_RestartsAfterPanic(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32
	recovered := make(chan struct{})

	s.Go("panicky", func(context.Context) error {
		if runs.Add(1) < 2 {
			panic("boom")
		}
		close(recovered)
		return nil
	})

	select {
	case <-recovered:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not restarted after panic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestShutdown_CancelsRunningTasks(t *testing.T) {
	s := New(context.Background())
	started := make(chan struct{})

	s.Go("blocker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestShutdown_BoundedByContext(t *testing.T) {
	s := New(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	s.Go("stubborn", func(context.Context) error {
		close(started)
		<-release // ignores cancellation
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
}
