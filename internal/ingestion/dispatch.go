package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"docvault-backend/internal/queue"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
)

var (
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrBacklogFull means the in-process backlog cannot take more jobs right now.
	ErrBacklogFull = errors.New("dispatch backlog full")
)

// Dispatcher hands a pending job to something that will run it. Dispatch must
// not wait for the job to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// minReleaseWait is how long Close waits for cancelled jobs to return once
// its deadline has passed.
const minReleaseWait = 10 * time.Millisecond

// PoolDispatcher runs jobs on a bounded ants pool inside this process. Jobs
// wait in a bounded backlog until a worker is free, so Dispatch never blocks.
type PoolDispatcher struct {
	runner  Runner
	pool    *ants.Pool
	backlog chan string
	slots   chan struct{}
	halt    chan struct{}
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	parked []string
	feeder sync.WaitGroup
}

// NewPoolDispatcher creates a pool with size workers and a backlog of
// backlog queued job ids.
func NewPoolDispatcher(runner Runner, size, backlog int) (*PoolDispatcher, error) {
	if size <= 0 {
		size = 1
	}
	if backlog <= 0 {
		backlog = 1024
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		telemetry.Error("ingestion.pool_panic", map[string]any{"panic": fmt.Sprint(p)})
	}))
	if err != nil {
		return nil, fmt.Errorf("create ingestion pool: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &PoolDispatcher{
		runner:  runner,
		pool:    pool,
		backlog: make(chan string, backlog),
		slots:   make(chan struct{}, size),
		halt:    make(chan struct{}),
		baseCtx: ctx,
		cancel:  cancel,
	}
	d.feeder.Add(1)
	go d.feed()
	return d, nil
}

func (d *PoolDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.IncDispatch("pool", "closed")
		return ErrDispatcherClosed
	}
	select {
	case d.backlog <- jobID:
		metrics.IncDispatch("pool", "ok")
		return nil
	default:
		metrics.IncDispatch("pool", "backlog_full")
		return ErrBacklogFull
	}
}

// feed moves backlog entries onto the pool once a worker slot is free. When
// Close halts it, whatever is left in the backlog is parked.
func (d *PoolDispatcher) feed() {
	defer d.feeder.Done()
	for jobID := range d.backlog {
		select {
		case d.slots <- struct{}{}:
		case <-d.halt:
			d.park(jobID)
			for rest := range d.backlog {
				d.park(rest)
			}
			return
		}
		id := jobID
		if err := d.pool.Submit(func() {
			defer func() { <-d.slots }()
			d.run(id)
		}); err != nil {
			<-d.slots
			telemetry.Error("ingestion.pool_submit_failed", map[string]any{"job_id": id, "error": err.Error()})
		}
	}
}

// park records a job that never started. It stays pending in the store, so
// the sweeper dispatches it again.
func (d *PoolDispatcher) park(jobID string) {
	d.mu.Lock()
	d.parked = append(d.parked, jobID)
	d.mu.Unlock()
	metrics.IncDispatch("pool", "parked")
}

func (d *PoolDispatcher) run(jobID string) {
	if err := d.runner.Run(d.baseCtx, jobID); err != nil {
		telemetry.Error("ingestion.run_error", map[string]any{"job_id": jobID, "error": err.Error()})
	}
}

// Running reports how many jobs are executing.
func (d *PoolDispatcher) Running() int {
	return d.pool.Running()
}

// Parked returns the jobs Close left in the backlog.
func (d *PoolDispatcher) Parked() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.parked...)
}

// Close stops accepting jobs and keeps starting queued ones until timeout.
// At the deadline the rest of the backlog is parked for the sweeper and
// running jobs are cancelled.
func (d *PoolDispatcher) Close(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.backlog)
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	fed := make(chan struct{})
	go func() {
		d.feeder.Wait()
		close(fed)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-fed:
	case <-timer.C:
		close(d.halt)
		<-fed
	}

	if parked := d.Parked(); len(parked) > 0 {
		telemetry.Warn("ingestion.pool_parked", map[string]any{"jobs": len(parked), "job_ids": parked})
	}

	wait := time.Until(deadline)
	if wait < minReleaseWait {
		d.cancel()
		wait = minReleaseWait
	}
	err := d.pool.ReleaseTimeout(wait)
	d.cancel()
	return err
}

// QueueDispatcher publishes job ids to an external queue consumed by cmd/worker.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now()
	}
	msg := queue.Message{
		JobID:      jobID,
		RequestID:  telemetry.RequestIDFrom(ctx),
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := d.Client.Send(context.WithoutCancel(ctx), msg); err != nil {
		metrics.IncDispatch("queue", "error")
		return err
	}
	metrics.IncDispatch("queue", "ok")
	return nil
}
