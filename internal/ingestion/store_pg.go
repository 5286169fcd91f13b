package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/placement"
	"docvault-backend/internal/shared/storage/db"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

const jobColumns = `id, document_id, project_id, status, attempt, retry_of, failed_stage, error_kind, error_detail, extraction_method, extraction_fallback, started_at, finished_at, created_at, updated_at`

func (r *PGStore) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO ingestion_jobs (
    id,
    document_id,
    project_id,
    status,
    attempt,
    retry_of,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	var retryOf sql.NullString
	if job.RetryOf != "" {
		retryOf = sql.NullString{String: job.RetryOf, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.DocumentID,
		job.ProjectID,
		string(job.Status),
		job.Attempt,
		retryOf,
		job.CreatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrJobInProgress
		}
		return err
	}
	return nil
}

func (r *PGStore) Get(ctx context.Context, id string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidText(err) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

func (r *PGStore) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(filter.Offset, 0)

	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryJobs(ctx, query, args...)
}

func (r *PGStore) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE document_id = $1 ORDER BY created_at DESC, attempt DESC`
	return r.queryJobs(ctx, query, documentID)
}

func (r *PGStore) Transition(ctx context.Context, id string, from, to Status, at time.Time) error {
	if !CanTransition(from, to) || to == StatusFailed || to == StatusCompleted {
		return ErrInvalidTransition
	}
	const query = `
UPDATE ingestion_jobs
SET status = $3,
    started_at = CASE WHEN $2 = 'pending' THEN $4 ELSE started_at END,
    updated_at = $4
WHERE id = $1 AND status = $2`
	res, err := r.DB.ExecContext(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

func (r *PGStore) RecordExtraction(ctx context.Context, id, method string, fallback bool, at time.Time) error {
	const query = `
UPDATE ingestion_jobs
SET extraction_method = $2,
    extraction_fallback = $3,
    updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, method, fallback, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGStore) Fail(ctx context.Context, id string, failure Failure, at time.Time) error {
	const query = `
UPDATE ingestion_jobs
SET status = 'failed',
    failed_stage = $2,
    error_kind = $3,
    error_detail = $4,
    finished_at = $5,
    updated_at = $5
WHERE id = $1 AND status NOT IN ('completed', 'failed')`
	res, err := r.DB.ExecContext(ctx, query, id, string(failure.Stage), string(failure.Kind), failure.Detail, at)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

func (r *PGStore) Complete(ctx context.Context, id string, result Result, at time.Time) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const updateDoc = `
UPDATE documents
SET category = $2,
    embedding = $3,
    storage_key = $4
WHERE id = $1 AND deleted_at IS NULL`
		res, err := tx.ExecContext(ctx, updateDoc,
			result.DocumentID,
			result.Category,
			pgvector.NewVector(result.Embedding),
			result.StorageKey,
		)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", placement.ErrStorageKeyCollision, result.StorageKey)
			}
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrDocumentDeleted
		}

		if err := replaceChunks(ctx, tx, result.DocumentID, result.Chunks); err != nil {
			return err
		}

		const updateJob = `
UPDATE ingestion_jobs
SET status = 'completed',
    finished_at = $2,
    updated_at = $2
WHERE id = $1 AND status = 'storing'`
		res, err = tx.ExecContext(ctx, updateJob, id, at)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
}

func replaceChunks(ctx context.Context, tx *sql.Tx, documentID string, chunks []documents.Chunk) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	const insert = `
INSERT INTO document_chunks (document_id, chunk_index, content, word_count, embedding)
VALUES ($1, $2, $3, $4, $5)`
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, insert, documentID, c.Index, c.Content, c.WordCount, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

func (r *PGStore) Stale(ctx context.Context, status Status, before time.Time, limit int) ([]Job, error) {
	if status.Terminal() {
		return []Job{}, nil
	}
	query := `SELECT ` + jobColumns + `
FROM ingestion_jobs
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3`
	return r.queryJobs(ctx, query, string(status), before, limit)
}

func (r *PGStore) Orphans(ctx context.Context, before time.Time, limit int) ([]documents.Document, error) {
	const query = `
SELECT d.id, d.project_id, d.created_at
FROM documents d
WHERE d.deleted_at IS NULL
  AND d.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM ingestion_jobs j WHERE j.document_id = d.id)
ORDER BY d.created_at ASC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]documents.Document, 0)
	for rows.Next() {
		var doc documents.Document
		if err := rows.Scan(&doc.ID, &doc.ProjectID, &doc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// requireRow maps a zero-row conditional update to ErrNotFound or ErrInvalidTransition.
func (r *PGStore) requireRow(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *PGStore) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var retryOf, failedStage, errorKind, errorDetail, method sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&job.ProjectID,
		&status,
		&job.Attempt,
		&retryOf,
		&failedStage,
		&errorKind,
		&errorDetail,
		&method,
		&job.ExtractionFallback,
		&startedAt,
		&finishedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	job.RetryOf = retryOf.String
	job.FailedStage = Stage(failedStage.String)
	job.ErrorKind = ErrorKind(errorKind.String)
	job.ErrorDetail = errorDetail.String
	job.ExtractionMethod = method.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return job, nil
}

var _ Store = (*PGStore)(nil)
