package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault-backend/internal/queue"
	"docvault-backend/internal/shared/telemetry"
)

type funcRunner func(ctx context.Context, jobID string) error

func (f funcRunner) Run(ctx context.Context, jobID string) error { return f(ctx, jobID) }

func TestPoolDispatcherRunsEveryJob(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	runner := funcRunner(func(_ context.Context, jobID string) error {
		defer wg.Done()
		mu.Lock()
		seen[jobID] = true
		mu.Unlock()
		return nil
	})

	d, err := NewPoolDispatcher(runner, 2, 16)
	require.NoError(t, err)

	ids := []string{"a", "b", "c", "d", "e"}
	wg.Add(len(ids))
	for _, id := range ids {
		require.NoError(t, d.Dispatch(context.Background(), id))
	}
	wg.Wait()
	require.NoError(t, d.Close(time.Second))

	for _, id := range ids {
		assert.True(t, seen[id], "job %s did not run", id)
	}
	assert.ErrorIs(t, d.Dispatch(context.Background(), "late"), ErrDispatcherClosed)
	assert.NoError(t, d.Close(time.Second), "second close is a no-op")
}

func TestPoolDispatcherReportsFullBacklog(t *testing.T) {
	release := make(chan struct{})
	runner := funcRunner(func(context.Context, string) error {
		<-release
		return nil
	})
	d, err := NewPoolDispatcher(runner, 1, 1)
	require.NoError(t, err)

	// One job runs, one waits for a worker slot and one sits in the backlog,
	// so a handful of dispatches must overflow.
	var full int
	for i := 0; i < 10; i++ {
		if err := d.Dispatch(context.Background(), "job"); errors.Is(err, ErrBacklogFull) {
			full++
		}
	}
	assert.Positive(t, full)

	close(release)
	require.NoError(t, d.Close(time.Second))
}

func TestPoolDispatcherSurvivesRunnerErrorsAndPanics(t *testing.T) {
	done := make(chan string, 2)
	runner := funcRunner(func(_ context.Context, jobID string) error {
		defer func() { done <- jobID }()
		if jobID == "panic" {
			panic("runner exploded")
		}
		return errors.New("store unreachable")
	})
	d, err := NewPoolDispatcher(runner, 1, 4)
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), "panic"))
	require.NoError(t, d.Dispatch(context.Background(), "error"))
	got := []string{<-done, <-done}
	assert.ElementsMatch(t, []string{"panic", "error"}, got)
	require.NoError(t, d.Close(time.Second))
}

func TestPoolDispatcherCloseHonoursTimeout(t *testing.T) {
	var started sync.Map
	runner := funcRunner(func(ctx context.Context, jobID string) error {
		started.Store(jobID, true)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
			return nil
		}
	})
	d, err := NewPoolDispatcher(runner, 1, 16)
	require.NoError(t, err)

	ids := []string{"j0", "j1", "j2", "j3", "j4", "j5", "j6", "j7", "j8", "j9"}
	for _, id := range ids {
		require.NoError(t, d.Dispatch(context.Background(), id))
	}
	require.Eventually(t, func() bool { return d.Running() == 1 }, time.Second, time.Millisecond)

	begin := time.Now()
	_ = d.Close(50 * time.Millisecond)
	assert.Less(t, time.Since(begin), 250*time.Millisecond)

	parked := d.Parked()
	assert.NotEmpty(t, parked)
	for _, id := range parked {
		_, ran := started.Load(id)
		assert.False(t, ran, "parked job %s must not have started", id)
	}
	var ran int
	started.Range(func(any, any) bool { ran++; return true })
	assert.Equal(t, len(ids), ran+len(parked), "every job either started or was parked")
}

type fakeQueue struct {
	msgs []queue.Message
	err  error
}

func (f *fakeQueue) Send(_ context.Context, msg queue.Message) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestQueueDispatcherSendsJobMessage(t *testing.T) {
	q := &fakeQueue{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &QueueDispatcher{Client: q, Now: func() time.Time { return now }}

	ctx := telemetry.WithRequestID(context.Background(), "req-9")
	require.NoError(t, d.Dispatch(ctx, "job-1"))

	require.Len(t, q.msgs, 1)
	assert.Equal(t, queue.Message{
		JobID:      "job-1",
		RequestID:  "req-9",
		EnqueuedAt: "2026-03-01T12:00:00Z",
		Version:    queue.MessageVersion,
	}, q.msgs[0])

	q.err = errors.New("throttled")
	assert.Error(t, d.Dispatch(context.Background(), "job-2"))
}
