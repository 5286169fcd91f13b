// Package mock provides a deterministic embedder for tests and offline development.
package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// Embedder is a test double for embedding.Embedder.
// EmbedFunc overrides the default deterministic behavior when set.
type Embedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Dim       int

	calls atomic.Int64
}

// NewEmbedder creates a mock embedder producing vectors of length dim.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{Dim: dim}
}

// Embed returns a vector derived only from text, so equal inputs give equal vectors.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Vector(text, m.Dim), nil
}

// Dimension reports the configured vector length.
func (m *Embedder) Dimension() int {
	return m.Dim
}

// Calls returns how many times Embed was invoked.
func (m *Embedder) Calls() int {
	return int(m.calls.Load())
}

// Vector creates a deterministic embedding from text using an FNV seed and an LCG.
func Vector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}
