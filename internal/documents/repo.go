package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	// Get returns the document even when soft-deleted.
	Get(ctx context.Context, id string) (Document, error)
	// ListByProject returns non-deleted documents, newest first.
	ListByProject(ctx context.Context, projectID string, filter ListFilter) ([]Document, error)
	// SoftDelete sets deleted_at once. Deleting an already deleted document is a no-op.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// ChunkRepo reads the chunks written when a document's ingestion completes.
type ChunkRepo interface {
	// ListChunks returns the chunks of a document ordered by index.
	ListChunks(ctx context.Context, documentID string) ([]Chunk, error)
}
