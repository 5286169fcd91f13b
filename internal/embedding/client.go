// Package embedding computes fixed-length vectors for document text using an
// OpenAI-compatible embedding service.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"docvault-backend/internal/shared/resilience"
)

const (
	// MaxInputChars is the truncation budget: only the first MaxInputChars runes are sent.
	MaxInputChars = 8000

	defaultTimeout = 60 * time.Second
)

// Embedder returns a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Backend is the subset of a langchaingo embedder the client needs.
type Backend interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Config describes the embedding service and the expected vector size.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	RateLimit float64
}

// Validate checks that the configuration can produce usable vectors.
func (c Config) Validate() error {
	if c.Dimension <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("embedding model is required")
	}
	return nil
}

// Client implements Embedder with a per-call timeout and a resilience guard.
type Client struct {
	backend   Backend
	dimension int
	timeout   time.Duration
	guard     *resilience.Guard
}

// New creates a Client backed by langchaingo's OpenAI embedder.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	token := cfg.APIKey
	if token == "" {
		// OpenAI-compatible local services often need no key, but the client requires one.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	backend, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewWithBackend(backend, cfg), nil
}

// NewWithBackend wires an arbitrary backend, used by tests and alternative providers.
func NewWithBackend(backend Backend, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		backend:   backend,
		dimension: cfg.Dimension,
		timeout:   timeout,
		guard: resilience.NewGuard(resilience.GuardOptions{
			Name:          "embedding",
			RatePerSecond: cfg.RateLimit,
			Burst:         max(1, int(cfg.RateLimit)),
		}),
	}
}

// Dimension is the vector length every successful Embed returns.
func (c *Client) Dimension() int {
	return c.dimension
}

// BreakerState reports the circuit breaker state towards the service.
func (c *Client) BreakerState() string {
	return c.guard.State()
}

// Embed returns the embedding of the first MaxInputChars runes of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := PrepareInput(text)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var vectors [][]float32
	err := c.guard.Do(callCtx, func(ctx context.Context) error {
		out, err := c.backend.EmbedDocuments(ctx, []string{input})
		if err != nil {
			return err
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingUnavailable)
	}
	if len(vectors[0]) != c.dimension {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", ErrEmbeddingUnavailable, len(vectors[0]), c.dimension)
	}
	return vectors[0], nil
}

// PrepareInput applies the truncation policy. Blank text becomes a single space
// because embedding APIs reject empty input.
func PrepareInput(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return " "
	}
	if utf8.RuneCountInString(trimmed) <= MaxInputChars {
		return trimmed
	}
	return string([]rune(trimmed)[:MaxInputChars])
}

var _ Embedder = (*Client)(nil)
