// Package categorize assigns exactly one label from a closed category set to a
// document using an OpenAI-compatible chat model.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docvault-backend/internal/shared/resilience"
)

const defaultTimeout = 30 * time.Second

// Input is what the categorizer looks at. Embedding is optional and currently
// only forwarded to alternative implementations.
type Input struct {
	Text      string
	FileName  string
	Embedding []float32
}

// Categorizer returns one valid Category or an error.
type Categorizer interface {
	Categorize(ctx context.Context, in Input) (Category, error)
}

// Generator is the subset of llms.Model used here.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config describes the chat model endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64
}

// Client implements Categorizer on top of a chat model.
type Client struct {
	model   Generator
	timeout time.Duration
	guard   *resilience.Guard
}

// New creates a Client using langchaingo's OpenAI chat model.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("categorize model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create categorize client: %w", err)
	}
	return NewWithModel(llm, cfg), nil
}

// NewWithModel wires an arbitrary Generator.
func NewWithModel(model Generator, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		model:   model,
		timeout: timeout,
		guard: resilience.NewGuard(resilience.GuardOptions{
			Name:          "categorize",
			RatePerSecond: cfg.RateLimit,
			Burst:         max(1, int(cfg.RateLimit)),
		}),
	}
}

// BreakerState reports the circuit breaker state towards the chat model.
func (c *Client) BreakerState() string {
	return c.guard.State()
}

// Categorize asks the model for a label and validates it against the closed set.
func (c *Client) Categorize(ctx context.Context, in Input) (Category, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(in.Text, in.FileName)),
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reply string
	err := c.guard.Do(callCtx, func(ctx context.Context) error {
		resp, err := c.model.GenerateContent(ctx, messages,
			llms.WithTemperature(0),
			llms.WithMaxTokens(10),
		)
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Choices) == 0 {
			reply = ""
			return nil
		}
		reply = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCategorizerUnavailable, err)
	}
	return ParseCategory(reply)
}

var _ Categorizer = (*Client)(nil)
