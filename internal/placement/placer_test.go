package placement

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/storage/object/local"
)

type failingStore struct {
	object.ObjectStore
	err error
}

func (f failingStore) Put(context.Context, string, string, io.Reader) (int64, error) {
	return 0, f.err
}

func readAll(t *testing.T, store object.ObjectStore, key string) string {
	t.Helper()
	rc, err := store.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey("42", categorize.Security, "spec.pdf")
	require.NoError(t, err)
	assert.Equal(t, "42/Security/spec.pdf", key)

	key, err = DeriveKey("42", categorize.Finance, "q1/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "42/Finance/q1_report.pdf", key)

	_, err = DeriveKey("42", categorize.Category("Other"), "a.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = DeriveKey("42", categorize.Finance, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = DeriveKey("", categorize.Finance, "a.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDisambiguatedKey(t *testing.T) {
	key, err := DisambiguatedKey("42", categorize.Finance, "report.pdf", "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "42/Finance/report-doc-2.pdf", key)

	key, err = DisambiguatedKey("42", categorize.Finance, "README", "doc-2")
	require.NoError(t, err)
	assert.Equal(t, "42/Finance/README-doc-2", key)
}

func TestPlaceWritesBytes(t *testing.T) {
	store := local.New(t.TempDir())
	p := NewPlacer(store, NewMemoryRegistry(), 0)

	key, err := p.Place(context.Background(), Request{
		ProjectID: "42", DocumentID: "doc-1", Category: categorize.Security,
		FileName: "spec.pdf", ContentType: "application/pdf", Body: []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "42/Security/spec.pdf", key)
	assert.Equal(t, "%PDF", readAll(t, store, key))
}

func TestPlaceDisambiguatesCollision(t *testing.T) {
	store := local.New(t.TempDir())
	p := NewPlacer(store, NewMemoryRegistry(), 0)
	ctx := context.Background()

	first, err := p.Place(ctx, Request{ProjectID: "42", DocumentID: "doc-1", Category: categorize.Finance, FileName: "report.pdf", Body: []byte("one")})
	require.NoError(t, err)
	second, err := p.Place(ctx, Request{ProjectID: "42", DocumentID: "doc-2", Category: categorize.Finance, FileName: "report.pdf", Body: []byte("two")})
	require.NoError(t, err)

	assert.Equal(t, "42/Finance/report.pdf", first)
	assert.Equal(t, "42/Finance/report-doc-2.pdf", second)
	assert.Equal(t, "one", readAll(t, store, first))
	assert.Equal(t, "two", readAll(t, store, second))
}

func TestPlaceIsIdempotentForSameDocument(t *testing.T) {
	store := local.New(t.TempDir())
	p := NewPlacer(store, NewMemoryRegistry(), 0)
	ctx := context.Background()
	req := Request{ProjectID: "42", DocumentID: "doc-2", Category: categorize.Finance, FileName: "report.pdf", Body: []byte("two")}

	_, err := p.Place(ctx, Request{ProjectID: "42", DocumentID: "doc-1", Category: categorize.Finance, FileName: "report.pdf", Body: []byte("one")})
	require.NoError(t, err)

	a, err := p.Place(ctx, req)
	require.NoError(t, err)
	b, err := p.Place(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlaceStoreFailureIsUnavailable(t *testing.T) {
	p := NewPlacer(failingStore{err: errors.New("quota exceeded")}, NewMemoryRegistry(), 0)

	_, err := p.Place(context.Background(), Request{ProjectID: "42", DocumentID: "d", Category: categorize.Compliance, FileName: "a.txt", Body: []byte("x")})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

type brokenRegistry struct{}

func (brokenRegistry) Claim(context.Context, string, string) (string, error) {
	return "", errors.New("db down")
}

func (brokenRegistry) Release(context.Context, string, string) error { return nil }

func TestPlaceRegistryFailureIsUnavailable(t *testing.T) {
	p := NewPlacer(local.New(t.TempDir()), brokenRegistry{}, 0)

	_, err := p.Place(context.Background(), Request{ProjectID: "42", DocumentID: "d", Category: categorize.Compliance, FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

type squatterRegistry struct{}

func (squatterRegistry) Claim(context.Context, string, string) (string, error) {
	return "someone-else", nil
}

func (squatterRegistry) Release(context.Context, string, string) error { return nil }

func TestPlaceReportsCollisionWhenBothKeysTaken(t *testing.T) {
	p := NewPlacer(local.New(t.TempDir()), squatterRegistry{}, 0)

	_, err := p.Place(context.Background(), Request{ProjectID: "42", DocumentID: "d", Category: categorize.Security, FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrStorageKeyCollision)
}

func TestDiscardRemovesObjectAndClaim(t *testing.T) {
	store := local.New(t.TempDir())
	registry := NewMemoryRegistry()
	p := NewPlacer(store, registry, 0)
	ctx := context.Background()

	key, err := p.Place(ctx, Request{ProjectID: "42", DocumentID: "doc-1", Category: categorize.Security, FileName: "spec.pdf", Body: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, p.Discard(ctx, key, "doc-1"))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	owner, err := registry.Claim(ctx, key, "doc-9")
	require.NoError(t, err)
	assert.Equal(t, "doc-9", owner)
}
