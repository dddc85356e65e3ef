package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// wordTokenizer counts whitespace-separated words as tokens.
type wordTokenizer struct {
	truncated []string
}

func (w *wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (w *wordTokenizer) Truncate(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if len(fields) > maxTokens {
		fields = fields[:maxTokens]
	}
	out := strings.Join(fields, " ")
	w.truncated = append(w.truncated, out)
	return out
}

func embeddingServer(t *testing.T, handler func(req openai.EmbeddingRequest) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
		}
		var req openai.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func vectors(n, size int) []openai.Embedding {
	out := make([]openai.Embedding, n)
	for i := range out {
		out[i] = openai.Embedding{Object: "embedding", Index: i, Embedding: make([]float32, size)}
	}
	return out
}

func TestNewEmbeddingsClient(t *testing.T) {
	client := NewEmbeddingsClient("http://localhost:8080", "test-key", "test-model", 1536)
	if client.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("NewEmbeddingsClient() BaseURL = %v, want http://localhost:8080/v1", client.BaseURL)
	}
	if client.ExpectedSize != 1536 {
		t.Errorf("NewEmbeddingsClient() ExpectedSize = %v, want 1536", client.ExpectedSize)
	}
	if client.MaxInputTokens != defaultMaxInputTokens {
		t.Errorf("NewEmbeddingsClient() MaxInputTokens = %v, want %v", client.MaxInputTokens, defaultMaxInputTokens)
	}
}

func TestEmbeddingsClient_Embed(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		handler    func(req openai.EmbeddingRequest) (int, any)
		wantTokens int
		wantErr    error
		anyErr     bool
	}{
		{
			name: "successful embedding reports usage",
			text: "React Hooks 기본",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				return http.StatusOK, openai.EmbeddingResponse{Data: vectors(1, 8), Usage: openai.Usage{PromptTokens: 6}}
			},
			wantTokens: 6,
		},
		{
			name: "missing usage falls back to tokenizer",
			text: "three word text",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				return http.StatusOK, openai.EmbeddingResponse{Data: vectors(1, 8)}
			},
			wantTokens: 3,
		},
		{
			name: "empty text is rejected before any call",
			text: "   ",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				t.Error("server should not be called for empty input")
				return http.StatusOK, nil
			},
			wantErr: ErrEmptyInput,
		},
		{
			name: "wrong vector size",
			text: "hello",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				return http.StatusOK, openai.EmbeddingResponse{Data: vectors(1, 4)}
			},
			anyErr: true,
		},
		{
			name: "no vectors returned",
			text: "hello",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				return http.StatusOK, openai.EmbeddingResponse{}
			},
			anyErr: true,
		},
		{
			name: "server error",
			text: "hello",
			handler: func(req openai.EmbeddingRequest) (int, any) {
				return http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "down"}}
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embeddingServer(t, tt.handler)
			client := NewEmbeddingsClient(server.URL, "test-key", "test-model", 8, WithTokenizer(&wordTokenizer{}))

			vec, tokens, err := client.Embed(context.Background(), tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Embed() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.anyErr {
				if err == nil {
					t.Fatal("Embed() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if len(vec) != 8 {
				t.Errorf("Embed() vector size = %v, want 8", len(vec))
			}
			if tokens != tt.wantTokens {
				t.Errorf("Embed() tokens = %v, want %v", tokens, tt.wantTokens)
			}
		})
	}
}

func TestEmbeddingsClient_EmbedTruncatesInput(t *testing.T) {
	var gotInput any
	server := embeddingServer(t, func(req openai.EmbeddingRequest) (int, any) {
		gotInput = req.Input
		return http.StatusOK, openai.EmbeddingResponse{Data: vectors(1, 8), Usage: openai.Usage{PromptTokens: 2}}
	})
	tok := &wordTokenizer{}
	client := NewEmbeddingsClient(server.URL, "test-key", "test-model", 8, WithTokenizer(tok), WithMaxInputTokens(2))

	if _, _, err := client.Embed(context.Background(), "one two three four"); err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}

	inputs, ok := gotInput.([]any)
	if !ok || len(inputs) != 1 || inputs[0] != "one two" {
		t.Errorf("Embed() sent input %v, want [one two]", gotInput)
	}
}
