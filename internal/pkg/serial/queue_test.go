package serial

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := New()
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, q.Sync(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_SubmitDoesNotWaitForRunningJob(t *testing.T) {
	q := New()
	defer q.Close()

	release := make(chan struct{})
	require.NoError(t, q.Submit(func() { <-release }))

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Submit(func() {}))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.GreaterOrEqual(t, q.backlog(), 10)
	close(release)
}

func TestQueue_SyncHonoursContext(t *testing.T) {
	q := New()
	defer q.Close()

	release := make(chan struct{})
	require.NoError(t, q.Submit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Sync(ctx), context.DeadlineExceeded)
	close(release)
}

func TestQueue_CloseDrainsBacklog(t *testing.T) {
	q := New()
	ran := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(func() { ran++ }))
	}
	q.Close()
	assert.Equal(t, 5, ran)
	assert.ErrorIs(t, q.Submit(func() {}), ErrClosed)
}
