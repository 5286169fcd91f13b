package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault-backend/internal/embedding/mock"
)

type fakeBackend struct {
	mu     sync.Mutex
	inputs []string
	fn     func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeBackend) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, texts...)
	f.mu.Unlock()
	return f.fn(ctx, texts)
}

func fixedVectors(dim int) func(context.Context, []string) ([][]float32, error) {
	return func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text, dim)
		}
		return out, nil
	}
}

func TestEmbedReturnsConfiguredDimension(t *testing.T) {
	backend := &fakeBackend{fn: fixedVectors(1536)}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 1536, Timeout: time.Second})

	vec, err := client.Embed(context.Background(), "security architecture review")
	require.NoError(t, err)
	assert.Len(t, vec, 1536)
	assert.Equal(t, 1536, client.Dimension())
}

func TestEmbedTruncatesInput(t *testing.T) {
	backend := &fakeBackend{fn: fixedVectors(8)}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 8})

	_, err := client.Embed(context.Background(), strings.Repeat("é", MaxInputChars+50))
	require.NoError(t, err)
	require.Len(t, backend.inputs, 1)
	assert.Equal(t, MaxInputChars, utf8.RuneCountInString(backend.inputs[0]))
}

func TestEmbedBlankInputSendsSpace(t *testing.T) {
	backend := &fakeBackend{fn: fixedVectors(4)}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 4})

	_, err := client.Embed(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, []string{" "}, backend.inputs)
}

func TestEmbedTimeoutIsUnavailable(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, _ []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 4, Timeout: 10 * time.Millisecond})

	_, err := client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedServiceErrorIsUnavailable(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("http status 503")
	}}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 4})

	_, err := client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestEmbedWrongDimensionIsUnavailable(t *testing.T) {
	backend := &fakeBackend{fn: fixedVectors(3)}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 4})

	_, err := client.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedEmptyResponseIsUnavailable(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, []string) ([][]float32, error) {
		return [][]float32{}, nil
	}}
	client := NewWithBackend(backend, Config{Model: "m", Dimension: 4})

	_, err := client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Model: "m"}.Validate())
	assert.Error(t, Config{Dimension: 4}.Validate())
	assert.NoError(t, Config{Model: "m", Dimension: 4}.Validate())
}

func TestPrepareInput(t *testing.T) {
	assert.Equal(t, " ", PrepareInput(""))
	assert.Equal(t, "abc", PrepareInput("  abc \n"))
}

func TestMockVectorDeterministic(t *testing.T) {
	assert.Equal(t, mock.Vector("same", 16), mock.Vector("same", 16))
	assert.NotEqual(t, mock.Vector("a", 16), mock.Vector("b", 16))
}
