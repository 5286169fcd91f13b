package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"docvault-backend/internal/shared/storage/object"
)

func TestPutOpenExistsDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	n, err := store.Put(ctx, "42/Security/spec.pdf", "application/pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("pdf-bytes")) {
		t.Fatalf("unexpected size %d", n)
	}

	ok, err := store.Exists(ctx, "42/Security/spec.pdf")
	if err != nil || !ok {
		t.Fatalf("expected object to exist, ok=%v err=%v", ok, err)
	}

	rc, err := store.Open(ctx, "42/Security/spec.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "pdf-bytes" {
		t.Fatalf("unexpected body %q", got)
	}

	if err := store.Delete(ctx, "42/Security/spec.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "42/Security/spec.pdf"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := store.Open(ctx, "42/Security/spec.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../escape.txt", "/abs/path.txt", ""} {
		if _, err := store.Put(context.Background(), key, "text/plain", strings.NewReader("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestPutFailureLeavesNoObject(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())
	if _, err := store.Put(ctx, "p/Finance/report.pdf", "application/pdf", failingReader{}); err == nil {
		t.Fatalf("expected write error")
	}
	ok, err := store.Exists(ctx, "p/Finance/report.pdf")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatalf("partial object must not be visible")
	}
}
