// Package placement derives deterministic object storage keys for categorized
// documents and writes their bytes.
package placement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/telemetry"
)

const defaultTimeout = 2 * time.Minute

// Request describes one document to place.
type Request struct {
	ProjectID   string
	DocumentID  string
	Category    categorize.Category
	FileName    string
	ContentType string
	Body        []byte
}

// Placer claims a key for a document and uploads its bytes there.
// A key held by another document is never overwritten: the placer falls back
// to a key that embeds the document id.
type Placer struct {
	store    object.ObjectStore
	registry KeyRegistry
	timeout  time.Duration
}

// NewPlacer creates a Placer. A non-positive timeout uses the default.
func NewPlacer(store object.ObjectStore, registry KeyRegistry, timeout time.Duration) *Placer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Placer{store: store, registry: registry, timeout: timeout}
}

// ResolveKey claims the storage key for the request without writing bytes.
// Repeated calls for the same document return the same key.
func (p *Placer) ResolveKey(ctx context.Context, req Request) (string, error) {
	key, err := DeriveKey(req.ProjectID, req.Category, req.FileName)
	if err != nil {
		return "", err
	}
	owner, err := p.registry.Claim(ctx, key, req.DocumentID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if owner == req.DocumentID {
		return key, nil
	}

	alt, err := DisambiguatedKey(req.ProjectID, req.Category, req.FileName, req.DocumentID)
	if err != nil {
		return "", err
	}
	owner, err = p.registry.Claim(ctx, alt, req.DocumentID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if owner != req.DocumentID {
		return "", fmt.Errorf("%w: %s held by %s", ErrStorageKeyCollision, alt, owner)
	}
	telemetry.Info("placement.disambiguated", map[string]any{
		"document_id": req.DocumentID,
		"key":         key,
		"owner":       owner,
		"placed_as":   alt,
	})
	return alt, nil
}

// Place resolves the key and writes the bytes. The key is returned only after
// the store confirms the full write.
func (p *Placer) Place(ctx context.Context, req Request) (string, error) {
	key, err := p.ResolveKey(ctx, req)
	if err != nil {
		return "", err
	}

	putCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	n, err := p.store.Put(putCtx, key, req.ContentType, bytes.NewReader(req.Body))
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageUnavailable, key, err)
	}
	if n != int64(len(req.Body)) {
		return "", fmt.Errorf("%w: short write %d of %d bytes", ErrStorageUnavailable, n, len(req.Body))
	}
	return key, nil
}

// Discard removes an object that was written but never committed and drops
// the claim. Errors are returned but callers usually only log them.
func (p *Placer) Discard(ctx context.Context, key, documentID string) error {
	if key == "" {
		return nil
	}
	var errs []error
	if err := p.store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
		errs = append(errs, fmt.Errorf("delete object: %w", err))
	}
	if err := p.registry.Release(ctx, key, documentID); err != nil {
		errs = append(errs, fmt.Errorf("release claim: %w", err))
	}
	return errors.Join(errs...)
}
