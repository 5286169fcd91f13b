package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo and ChunkRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document

	chunkMu sync.RWMutex
	chunks  map[string][]Chunk
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document), chunks: make(map[string][]Chunk)}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = clone(doc)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return clone(doc), nil
}

func (r *MemoryRepo) ListByProject(ctx context.Context, projectID string, filter ListFilter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	docs := make([]Document, 0)
	for _, doc := range r.data {
		if doc.ProjectID != projectID || doc.Deleted() {
			continue
		}
		if filter.Uncategorized && doc.Category != "" {
			continue
		}
		if !filter.Uncategorized && filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		docs = append(docs, clone(doc))
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if filter.Offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return docs[filter.Offset:end], nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if doc.DeletedAt == nil {
		doc.DeletedAt = &at
		r.data[id] = doc
	}
	return nil
}

// Update applies fn to a stored document under the write lock. fn may return
// an error to abort without saving. Callers that need to change other state
// atomically with the document do it inside fn.
func (r *MemoryRepo) Update(ctx context.Context, id string, fn func(doc *Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&doc); err != nil {
		return err
	}
	r.data[id] = clone(doc)
	return nil
}

// All returns every stored document, including deleted ones.
func (r *MemoryRepo) All(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		out = append(out, clone(doc))
	}
	return out, nil
}

// ReplaceChunks swaps the stored chunks of a document for chunks.
func (r *MemoryRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.chunkMu.Lock()
	defer r.chunkMu.Unlock()
	if len(chunks) == 0 {
		delete(r.chunks, documentID)
		return nil
	}
	r.chunks[documentID] = cloneChunks(chunks)
	return nil
}

func (r *MemoryRepo) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.chunkMu.RLock()
	defer r.chunkMu.RUnlock()
	out := cloneChunks(r.chunks[documentID])
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func cloneChunks(chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		out[i] = c
	}
	return out
}

func clone(doc Document) Document {
	if doc.Embedding != nil {
		doc.Embedding = append([]float32(nil), doc.Embedding...)
	}
	if doc.DeletedAt != nil {
		at := *doc.DeletedAt
		doc.DeletedAt = &at
	}
	return doc
}
