package taskrunner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRespectsCapacity(t *testing.T) {
	r := New(context.Background(), 1)
	started := make(chan struct{})
	release := make(chan struct{})

	err := r.Submit("a", func(ctx context.Context) {
		close(started)
		<-release
	}, nil)
	require.NoError(t, err)

	<-started
	err = r.Submit("b", func(ctx context.Context) {}, nil)
	assert.ErrorIs(t, err, ErrAtCapacity)

	close(release)
}

func TestCancelStopsTask(t *testing.T) {
	r := New(context.Background(), 2)
	var wg sync.WaitGroup
	wg.Add(1)
	cancelled := false

	err := r.Submit("task", func(ctx context.Context) {
		defer wg.Done()
		<-ctx.Done()
		cancelled = true
	}, nil)
	require.NoError(t, err)

	require.True(t, r.IsRunning("task"))
	require.NoError(t, r.Cancel("task"))
	wg.Wait()
	assert.True(t, cancelled)
}

func TestCancelUnknownTask(t *testing.T) {
	r := New(context.Background(), 1)
	assert.ErrorIs(t, r.Cancel("nope"), ErrUnknownTask)
}

func TestShutdownCancelsAllRunning(t *testing.T) {
	r := New(context.Background(), 3)
	var wg sync.WaitGroup
	wg.Add(2)

	for _, id := range []string{"x", "y"} {
		require.NoError(t, r.Submit(id, func(ctx context.Context) {
			defer wg.Done()
			<-ctx.Done()
		}, nil))
	}

	r.Shutdown()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not observe shutdown cancellation")
	}
}
