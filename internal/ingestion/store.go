package ingestion

import (
	"context"
	"time"

	"docvault-backend/internal/documents"
)

// Store persists jobs and commits pipeline results.
// Every status change is conditional on the expected current status.
type Store interface {
	// Create inserts a pending job. It fails with ErrJobInProgress when the
	// document already has a non-terminal job.
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	// ListByDocument returns a document's jobs, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]Job, error)
	// Transition moves a job from -> to or fails with ErrInvalidTransition.
	Transition(ctx context.Context, id string, from, to Status, at time.Time) error
	// RecordExtraction stores how the text was obtained and counts as progress.
	RecordExtraction(ctx context.Context, id, method string, fallback bool, at time.Time) error
	// Fail moves a non-terminal job to Failed.
	Fail(ctx context.Context, id string, failure Failure, at time.Time) error
	// Complete writes the result to the document and moves the job from
	// Storing to Completed in one atomic step. It fails with
	// ErrDocumentDeleted when the document was soft-deleted meanwhile.
	Complete(ctx context.Context, id string, result Result, at time.Time) error
	// Stale returns non-terminal jobs in status last updated before the cutoff.
	Stale(ctx context.Context, status Status, before time.Time, limit int) ([]Job, error)
	// Orphans returns live documents created before the cutoff that have no job at all.
	Orphans(ctx context.Context, before time.Time, limit int) ([]documents.Document, error)
}
