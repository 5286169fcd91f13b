package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, project_id, uploaded_by, original_filename, content_type, size_bytes, storage_provider, staging_key, category, embedding, storage_key, created_at, deleted_at`

func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    project_id,
    uploaded_by,
    original_filename,
    content_type,
    size_bytes,
    storage_provider,
    staging_key,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.ProjectID,
		doc.UploadedBy,
		doc.FileName,
		doc.ContentType,
		doc.SizeBytes,
		storageProvider,
		doc.StagingKey,
		doc.CreatedAt,
	)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidText(err) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (r *PGRepo) ListByProject(ctx context.Context, projectID string, filter ListFilter) ([]Document, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case filter.Uncategorized:
		query := `SELECT ` + documentColumns + `
FROM documents
WHERE project_id = $1 AND deleted_at IS NULL AND category IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
		rows, err = r.DB.QueryContext(ctx, query, projectID, limit, offset)
	case filter.Category != "":
		query := `SELECT ` + documentColumns + `
FROM documents
WHERE project_id = $1 AND deleted_at IS NULL AND category = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
		rows, err = r.DB.QueryContext(ctx, query, projectID, string(filter.Category), limit, offset)
	default:
		query := `SELECT ` + documentColumns + `
FROM documents
WHERE project_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
		rows, err = r.DB.QueryContext(ctx, query, projectID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PGRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE documents SET deleted_at = COALESCE(deleted_at, $2) WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, at)
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

func (r *PGRepo) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	const query = `
SELECT chunk_index, content, word_count, embedding
FROM document_chunks
WHERE document_id = $1
ORDER BY chunk_index`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		if db.IsInvalidText(err) {
			return []Chunk{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	chunks := make([]Chunk, 0)
	for rows.Next() {
		var c Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.Index, &c.Content, &c.WordCount, &embedding); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var category sql.NullString
	var embedding *pgvector.Vector
	var storageKey sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.UploadedBy,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.StorageProvider,
		&doc.StagingKey,
		&category,
		&embedding,
		&storageKey,
		&doc.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if category.Valid {
		doc.Category = categorize.Category(category.String)
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	if storageKey.Valid {
		doc.StorageKey = storageKey.String
	}
	if deletedAt.Valid {
		at := deletedAt.Time
		doc.DeletedAt = &at
	}
	return doc, nil
}
