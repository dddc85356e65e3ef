package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the completion API answers without any choice.
var ErrNoChoices = errors.New("no choices returned")

// Client is a client for OpenAI-compatible chat completion APIs.
type Client struct {
	BaseURL     string
	Model       string
	Temperature float32
	api         *openai.Client
}

// NewClient creates a new LLM client. A missing /v1 suffix is added to baseURL.
func NewClient(baseURL, apiKey, model string) *Client {
	baseURL = normalizeBaseURL(baseURL)
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		api:     openai.NewClientWithConfig(cfg),
	}
}

// WithTemperature sets the default sampling temperature and returns the client.
func (c *Client) WithTemperature(t float32) *Client {
	c.Temperature = t
	return c
}

// ChatWithMessages sends a conversation and returns the first choice's content.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(messages, params, false))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChatJSON requests a JSON object response and decodes it into out.
// Malformed JSON is repaired before decoding.
func (c *Client) ChatJSON(ctx context.Context, messages []Message, params ChatParams, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(messages, params, true))
	if err != nil {
		return fmt.Errorf("structured chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrNoChoices
	}
	return DecodeJSON(resp.Choices[0].Message.Content, out)
}

func (c *Client) request(messages []Message, params ChatParams, jsonMode bool) openai.ChatCompletionRequest {
	model := params.Model
	if model == "" {
		model = c.Model
	}
	temperature := params.Temperature
	if temperature == 0 {
		temperature = c.Temperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   params.MaxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}
