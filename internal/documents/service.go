package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/projects"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/shared/util"
)

// DownloadURLTTL is how long presigned download links stay valid.
const DownloadURLTTL = time.Hour

// ProjectLookup resolves the project an upload targets.
type ProjectLookup interface {
	Get(ctx context.Context, id string) (projects.Project, error)
}

// Ingestor starts and reports on the ingestion pipeline for a document.
type Ingestor interface {
	// Submit creates a pending job and dispatches it asynchronously.
	Submit(ctx context.Context, doc Document) (JobSummary, error)
	// LatestJob returns the newest job for a document or ErrNotFound.
	LatestJob(ctx context.Context, documentID string) (JobSummary, error)
}

// Service contains business logic for documents.
type Service struct {
	Repo            Repo
	Chunks          ChunkRepo
	Store           object.ObjectStore
	Projects        ProjectLookup
	Ingest          Ingestor
	StorageProvider string
	// PresignDownloads hands out URLs instead of streaming when the store supports it.
	PresignDownloads bool
}

// UploadInput is one accepted file.
type UploadInput struct {
	ProjectID   string
	UploadedBy  string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadResult is what the caller learns synchronously about an upload.
type UploadResult struct {
	Document Document
	JobID    string
	Status   string
}

// Download is either a URL or an open reader, never both.
type Download struct {
	URL         string
	Body        io.ReadCloser
	FileName    string
	ContentType string
	SizeBytes   int64
}

// Upload stages the bytes, records the document and submits an ingestion job.
// Once the document is recorded the upload succeeds, even if submission fails;
// the pending sweeper creates the job later.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if in.Body == nil {
		return UploadResult{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.UploadedBy) == "" {
		return UploadResult{}, fmt.Errorf("%w: uploaded_by is required", ErrInvalidInput)
	}
	fileName, err := util.SanitizeFileName(in.FileName)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.Projects.Get(ctx, in.ProjectID); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return UploadResult{}, ErrProjectNotFound
		}
		return UploadResult{}, err
	}

	body := in.Body
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		sniffed, replay, err := object.Sniff(body)
		if err != nil {
			return UploadResult{}, fmt.Errorf("read upload: %w", err)
		}
		body = replay
		if contentType == "" || !strings.HasPrefix(sniffed, "application/octet-stream") {
			contentType = sniffed
		}
	}

	docID := uuid.NewString()
	stagingKey := StagingKeyFor(docID, fileName)
	size, err := s.Store.Put(ctx, stagingKey, contentType, body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("stage upload: %w", err)
	}

	doc := Document{
		ID:              docID,
		ProjectID:       in.ProjectID,
		UploadedBy:      in.UploadedBy,
		FileName:        fileName,
		ContentType:     contentType,
		SizeBytes:       size,
		StorageProvider: s.StorageProvider,
		StagingKey:      stagingKey,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Store.Delete(context.WithoutCancel(ctx), stagingKey); delErr != nil {
			telemetry.Warn("documents.staging_cleanup_failed", map[string]any{
				"document_id": docID,
				"error":       delErr.Error(),
			})
		}
		return UploadResult{}, fmt.Errorf("create document: %w", err)
	}

	result := UploadResult{Document: doc, Status: "pending"}
	job, err := s.Ingest.Submit(ctx, doc)
	if err != nil {
		telemetry.Error("documents.submit_failed", map[string]any{
			"document_id": docID,
			"project_id":  doc.ProjectID,
			"error":       err.Error(),
		})
		return result, nil
	}
	result.JobID = job.ID
	if job.Status != "" {
		result.Status = job.Status
	}
	return result, nil
}

// Get returns a non-deleted document.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Deleted() {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Detail returns a document and its newest ingestion job, if any.
func (s *Service) Detail(ctx context.Context, id string) (Document, *JobSummary, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	job, err := s.Ingest.LatestJob(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return doc, nil, nil
		}
		return Document{}, nil, err
	}
	return doc, &job, nil
}

// ListChunks returns the embedded chunks of a non-deleted document. Documents
// whose ingestion has not completed have none.
func (s *Service) ListChunks(ctx context.Context, id string) ([]Chunk, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.Chunks == nil {
		return []Chunk{}, nil
	}
	return s.Chunks.ListChunks(ctx, id)
}

// List returns documents of a project, optionally narrowed to one category.
func (s *Service) List(ctx context.Context, projectID string, filter ListFilter) ([]Document, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.Repo.ListByProject(ctx, projectID, filter)
}

// Delete soft-deletes a document. Stored bytes and the record stay for audit.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	telemetry.Info("documents.deleted", map[string]any{"document_id": id})
	return nil
}

// Download returns the placed object, or the staged upload when ingestion has
// not completed yet.
func (s *Service) Download(ctx context.Context, id string) (Download, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return Download{}, err
	}
	out := Download{FileName: doc.FileName, ContentType: doc.ContentType, SizeBytes: doc.SizeBytes}

	if presigner, ok := s.Store.(object.Presigner); ok && s.PresignDownloads {
		url, err := presigner.PresignGet(ctx, doc.ObjectKey(), DownloadURLTTL)
		if err != nil {
			return Download{}, fmt.Errorf("presign download: %w", err)
		}
		out.URL = url
		return out, nil
	}

	rc, err := s.Store.Open(ctx, doc.ObjectKey())
	if errors.Is(err, object.ErrNotFound) && doc.StorageKey == "" {
		// Placement may have committed and removed the staging copy since the read.
		doc, err = s.Get(ctx, id)
		if err != nil {
			return Download{}, err
		}
		rc, err = s.Store.Open(ctx, doc.ObjectKey())
	}
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Download{}, ErrNotFound
		}
		return Download{}, err
	}
	out.Body = rc
	return out, nil
}
