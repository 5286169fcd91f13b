package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/shared/telemetry"
)

// DocumentLookup loads documents, including soft-deleted ones.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (documents.Document, error)
}

// Service creates jobs and reports on them. Execution happens elsewhere,
// behind the Dispatcher.
type Service struct {
	Jobs       Store
	Docs       DocumentLookup
	Dispatcher Dispatcher
	Now        func() time.Time
}

// Submit creates the first pending job for a freshly uploaded document and
// dispatches it without waiting for it to run.
func (s *Service) Submit(ctx context.Context, doc documents.Document) (documents.JobSummary, error) {
	job, err := s.create(ctx, doc, 1, "")
	if err != nil {
		return documents.JobSummary{}, err
	}
	s.dispatch(ctx, job)
	return Summary(job), nil
}

// LatestJob returns the newest job of a document, or documents.ErrNotFound
// when it has none yet.
func (s *Service) LatestJob(ctx context.Context, documentID string) (documents.JobSummary, error) {
	jobs, err := s.Jobs.ListByDocument(ctx, documentID)
	if err != nil {
		return documents.JobSummary{}, err
	}
	if len(jobs) == 0 {
		return documents.JobSummary{}, documents.ErrNotFound
	}
	return Summary(jobs[0]), nil
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.Jobs.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", filter.Status)
	}
	return s.Jobs.List(ctx, filter)
}

// ListByDocument returns every job of a live document, newest first.
func (s *Service) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	doc, err := s.Docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Deleted() {
		return nil, documents.ErrNotFound
	}
	return s.Jobs.ListByDocument(ctx, documentID)
}

// Retry starts a new attempt for a failed job. Only the latest job of a live
// document can be retried; the failed job itself is left untouched.
func (s *Service) Retry(ctx context.Context, jobID string) (Job, error) {
	prev, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if prev.Status != StatusFailed {
		return Job{}, ErrNotRetryable
	}

	doc, err := s.Docs.Get(ctx, prev.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return Job{}, ErrDocumentDeleted
		}
		return Job{}, err
	}
	if doc.Deleted() {
		return Job{}, ErrDocumentDeleted
	}

	jobs, err := s.Jobs.ListByDocument(ctx, prev.DocumentID)
	if err != nil {
		return Job{}, err
	}
	if len(jobs) > 0 && jobs[0].ID != prev.ID {
		if !jobs[0].Status.Terminal() {
			return Job{}, ErrJobInProgress
		}
		return Job{}, fmt.Errorf("%w: job %s was superseded by %s", ErrNotRetryable, prev.ID, jobs[0].ID)
	}

	job, err := s.create(ctx, doc, prev.Attempt+1, prev.ID)
	if err != nil {
		return Job{}, err
	}
	telemetry.Info("ingestion.retry", map[string]any{
		"job_id":      job.ID,
		"retry_of":    prev.ID,
		"document_id": doc.ID,
		"attempt":     job.Attempt,
	})
	s.dispatch(ctx, job)
	return job, nil
}

// Resubmit dispatches an existing pending job again. Used by the sweeper.
func (s *Service) Resubmit(ctx context.Context, job Job) {
	s.dispatch(ctx, job)
}

// Adopt creates the missing first job for a document whose upload recorded
// the document but never got a job.
func (s *Service) Adopt(ctx context.Context, doc documents.Document) (Job, error) {
	job, err := s.create(ctx, doc, 1, "")
	if err != nil {
		return Job{}, err
	}
	s.dispatch(ctx, job)
	return job, nil
}

func (s *Service) create(ctx context.Context, doc documents.Document, attempt int, retryOf string) (Job, error) {
	now := s.now()
	job := Job{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		ProjectID:  doc.ProjectID,
		Status:     StatusPending,
		Attempt:    attempt,
		RetryOf:    retryOf,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// dispatch never fails the caller. A job that could not be handed over stays
// pending and the sweeper picks it up.
func (s *Service) dispatch(ctx context.Context, job Job) {
	if s.Dispatcher == nil {
		return
	}
	if err := s.Dispatcher.Dispatch(context.WithoutCancel(ctx), job.ID); err != nil {
		telemetry.Warn("ingestion.dispatch_failed", map[string]any{
			"job_id":      job.ID,
			"document_id": job.DocumentID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Summary projects a job onto the fields documents expose.
func Summary(job Job) documents.JobSummary {
	return documents.JobSummary{
		ID:          job.ID,
		Status:      string(job.Status),
		Attempt:     job.Attempt,
		FailedStage: string(job.FailedStage),
		ErrorKind:   string(job.ErrorKind),
		UpdatedAt:   job.UpdatedAt,
	}
}

var _ documents.Ingestor = (*Service)(nil)
