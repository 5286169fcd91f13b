package ingestion

import (
	"context"
	"sort"
	"sync"
	"time"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/documents"
)

// MemoryStore is an in-memory Store. Complete updates the document through
// the documents.MemoryRepo lock, so the document write and the status change
// are observed together.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
	docs *documents.MemoryRepo
}

// NewMemoryStore constructs a MemoryStore bound to a documents repo.
func NewMemoryStore(docs *documents.MemoryRepo) *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job), docs: docs}
}

func (s *MemoryStore) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.DocumentID == job.DocumentID && !existing.Status.Terminal() {
			return ErrJobInProgress
		}
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	return s.collect(ctx, filter.Limit, filter.Offset, func(j Job) bool {
		if filter.Status != "" && j.Status != filter.Status {
			return false
		}
		return filter.ProjectID == "" || j.ProjectID == filter.ProjectID
	})
}

func (s *MemoryStore) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	return s.collect(ctx, 0, 0, func(j Job) bool { return j.DocumentID == documentID })
}

func (s *MemoryStore) collect(ctx context.Context, limit, offset int, keep func(Job) bool) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Job, 0)
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Attempt > out[j].Attempt
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Job{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, from, to Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !CanTransition(from, to) || to == StatusFailed || to == StatusCompleted {
		return ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != from {
		return ErrInvalidTransition
	}
	job.Status = to
	job.UpdatedAt = at
	if from == StatusPending {
		job.StartedAt = &at
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) RecordExtraction(ctx context.Context, id, method string, fallback bool, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.ExtractionMethod = method
	job.ExtractionFallback = fallback
	job.UpdatedAt = at
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) Fail(ctx context.Context, id string, failure Failure, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrInvalidTransition
	}
	job.Status = StatusFailed
	job.FailedStage = failure.Stage
	job.ErrorKind = failure.Kind
	job.ErrorDetail = failure.Detail
	job.FinishedAt = &at
	job.UpdatedAt = at
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string, result Result, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.docs.Update(ctx, result.DocumentID, func(doc *documents.Document) error {
		if doc.Deleted() {
			return ErrDocumentDeleted
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		job, ok := s.jobs[id]
		if !ok {
			return ErrNotFound
		}
		if job.Status != StatusStoring {
			return ErrInvalidTransition
		}
		doc.Category = categorize.Category(result.Category)
		doc.Embedding = append([]float32(nil), result.Embedding...)
		doc.StorageKey = result.StorageKey
		if err := s.docs.ReplaceChunks(ctx, result.DocumentID, result.Chunks); err != nil {
			return err
		}

		job.Status = StatusCompleted
		job.FinishedAt = &at
		job.UpdatedAt = at
		s.jobs[id] = job
		return nil
	})
}

func (s *MemoryStore) Stale(ctx context.Context, status Status, before time.Time, limit int) ([]Job, error) {
	jobs, err := s.collect(ctx, 0, 0, func(j Job) bool {
		return j.Status == status && !j.Status.Terminal() && j.UpdatedAt.Before(before)
	})
	if err != nil {
		return nil, err
	}
	// Oldest first so long-waiting jobs go out first.
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt.Before(jobs[j].UpdatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryStore) Orphans(ctx context.Context, before time.Time, limit int) ([]documents.Document, error) {
	docs, err := s.docs.All(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	hasJob := make(map[string]bool, len(s.jobs))
	for _, j := range s.jobs {
		hasJob[j.DocumentID] = true
	}
	s.mu.RUnlock()

	out := make([]documents.Document, 0)
	for _, doc := range docs {
		if doc.Deleted() || hasJob[doc.ID] || !doc.CreatedAt.Before(before) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
