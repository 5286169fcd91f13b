package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"docvault-backend/internal/shared/telemetry"
)

const (
	defaultSweepBatch = 100
	sweepTag          = "ingestion-sweep"
)

var runningStatuses = []Status{StatusExtracting, StatusEmbedding, StatusCategorizing, StatusStoring}

// Sweeper recovers work that fell through the cracks: pending jobs whose
// dispatch was lost, documents recorded without a job, and runs that died
// mid-pipeline.
type Sweeper struct {
	Jobs    Store
	Service *Service
	// Interval between sweeps.
	Interval time.Duration
	// PendingAfter is how long a job may sit in pending before it is dispatched again.
	PendingAfter time.Duration
	// StuckAfter is how long a running job may go without progress before it is failed.
	StuckAfter time.Duration
	BatchSize  int
	Now        func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// SweepReport counts what one pass did.
type SweepReport struct {
	Redispatched int
	Adopted      int
	Abandoned    int
}

// Start schedules SweepOnce every Interval and returns. Passes never
// overlap; a pass still running when the next one is due is skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.TagsUnique()
	_, err := scheduler.Every(interval).Tag(sweepTag).SingletonMode().WaitForSchedule().Do(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			telemetry.Error("ingestion.sweep_failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.StartAsync()
	s.scheduler = scheduler
	return nil
}

// Stop halts the schedule. It is safe to call when Start never ran.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return
	}
	s.scheduler.Stop()
	s.scheduler = nil
}

// Scheduled reports whether the periodic sweep is registered.
func (s *Sweeper) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return false
	}
	jobs, err := s.scheduler.FindJobsByTag(sweepTag)
	return err == nil && len(jobs) == 1
}

// SweepOnce runs a single pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.now()
	batch := s.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}

	pending, err := s.Jobs.Stale(ctx, StatusPending, now.Add(-s.PendingAfter), batch)
	if err != nil {
		return report, err
	}
	for _, job := range pending {
		s.Service.Resubmit(ctx, job)
		report.Redispatched++
	}

	orphans, err := s.Jobs.Orphans(ctx, now.Add(-s.PendingAfter), batch)
	if err != nil {
		return report, err
	}
	for _, doc := range orphans {
		if _, err := s.Service.Adopt(ctx, doc); err != nil {
			if errors.Is(err, ErrJobInProgress) {
				continue
			}
			telemetry.Warn("ingestion.adopt_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
			continue
		}
		report.Adopted++
	}

	if s.StuckAfter > 0 {
		for _, status := range runningStatuses {
			stuck, err := s.Jobs.Stale(ctx, status, now.Add(-s.StuckAfter), batch)
			if err != nil {
				return report, err
			}
			for _, job := range stuck {
				failure := Failure{Stage: stageFor(job.Status), Kind: KindInternal, Detail: "job abandoned: no progress since " + job.UpdatedAt.Format(time.RFC3339)}
				if err := s.Jobs.Fail(ctx, job.ID, failure, now); err != nil {
					if errors.Is(err, ErrInvalidTransition) {
						continue
					}
					return report, err
				}
				telemetry.Warn("ingestion.abandoned_job_failed", map[string]any{
					"job_id":      job.ID,
					"document_id": job.DocumentID,
					"stage":       string(failure.Stage),
				})
				report.Abandoned++
			}
		}
	}

	if report != (SweepReport{}) {
		telemetry.Info("ingestion.sweep", map[string]any{
			"redispatched": report.Redispatched,
			"adopted":      report.Adopted,
			"abandoned":    report.Abandoned,
		})
	}
	return report, nil
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
