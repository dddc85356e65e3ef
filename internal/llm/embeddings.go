package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyInput is returned when asked to embed empty or whitespace-only text.
var ErrEmptyInput = errors.New("embedding input is empty")

// defaultMaxInputTokens is the input limit of the OpenAI embedding models.
const defaultMaxInputTokens = 8191

// EmbeddingsClient is a client for OpenAI-compatible embedding APIs.
type EmbeddingsClient struct {
	BaseURL        string
	Model          string
	ExpectedSize   int
	MaxInputTokens int
	tokenizer      Tokenizer
	api            *openai.Client
}

// EmbeddingsOption configures an EmbeddingsClient.
type EmbeddingsOption func(*EmbeddingsClient)

// WithTokenizer enables input truncation and local token counting.
func WithTokenizer(t Tokenizer) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		c.tokenizer = t
	}
}

// WithMaxInputTokens overrides the input token limit used for truncation.
func WithMaxInputTokens(n int) EmbeddingsOption {
	return func(c *EmbeddingsClient) {
		c.MaxInputTokens = n
	}
}

// NewEmbeddingsClient creates a new embeddings client. expectedSize is the
// vector dimension every response must have.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int, opts ...EmbeddingsOption) *EmbeddingsClient {
	baseURL = normalizeBaseURL(baseURL)
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	c := &EmbeddingsClient{
		BaseURL:        baseURL,
		Model:          model,
		ExpectedSize:   expectedSize,
		MaxInputTokens: defaultMaxInputTokens,
		api:            openai.NewClientWithConfig(cfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns the embedding of text and the number of input tokens consumed.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, ErrEmptyInput
	}
	if c.tokenizer != nil {
		text = c.tokenizer.Truncate(text, c.MaxInputTokens)
	}

	resp, err := c.create(ctx, []string{text})
	if err != nil {
		return nil, 0, err
	}

	tokens := resp.Usage.PromptTokens
	if tokens == 0 && c.tokenizer != nil {
		tokens = c.tokenizer.Count(text)
	}
	return resp.Data[0].Embedding, tokens, nil
}

func (c *EmbeddingsClient) create(ctx context.Context, texts []string) (openai.EmbeddingResponse, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.Model),
	})
	if err != nil {
		return openai.EmbeddingResponse{}, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return openai.EmbeddingResponse{}, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return openai.EmbeddingResponse{}, fmt.Errorf("embedding %d is empty", i)
		}
		if c.ExpectedSize > 0 && len(d.Embedding) != c.ExpectedSize {
			return openai.EmbeddingResponse{}, fmt.Errorf("embedding %d has size %d, expected %d", i, len(d.Embedding), c.ExpectedSize)
		}
	}
	return resp, nil
}
