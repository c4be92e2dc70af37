package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-done:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestQueueRetriesFailures(t *testing.T) {
	var calls int32
	finished := make(chan int, 1)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("transient")
		}
		finished <- job.Attempt
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "retry"}))
	select {
	case attempt := <-finished:
		assert.Equal(t, 2, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("exports", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}

func TestQueueIgnoresDuplicateIDsWhilePending(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	done := make(chan struct{}, 2)
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		<-release
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}
	select {
	case <-done:
		t.Fatal("duplicate job ran")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.Eventually(t, func() bool { return q.Stats().Tracked == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finished job id could not be queued again")
	}
}

func TestQueueRecoversPanicsAsFailures(t *testing.T) {
	var calls int32
	q := NewQueue("exports", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		panic("broken renderer")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "boom"}))
	require.Eventually(t, func() bool { return q.Stats().Abandoned == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, uint64(1), q.Stats().Retried)
	assert.Zero(t, q.Stats().Tracked)
}

func TestQueueBackoffIsCapped(t *testing.T) {
	q := NewQueue("exports", func(ctx context.Context, job Job) error { return nil }, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})

	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
	assert.Equal(t, 5*time.Second, q.backoff(10))
}
