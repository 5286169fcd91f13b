package object

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned when no object exists at a storage key.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for writing and reading binary objects by key.
type ObjectStore interface {
	// Put writes the reader to key, replacing any existing object. The write is
	// all-or-nothing from a reader's point of view.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out time-limited download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Sniff reads up to 512 bytes to detect a content type and returns a reader that
// replays them ahead of the rest of r.
func Sniff(r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	return http.DetectContentType(head[:n]), io.MultiReader(bytes.NewReader(head[:n]), r), nil
}
