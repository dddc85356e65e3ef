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

func chatServer(t *testing.T, handler func(t *testing.T, req openai.ChatCompletionRequest) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing Authorization header")
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		status, body := handler(t, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "test-id",
		Object: "chat.completion",
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "adds v1", baseURL: "http://localhost:8081", want: "http://localhost:8081/v1"},
		{name: "keeps v1", baseURL: "https://api.openai.com/v1", want: "https://api.openai.com/v1"},
		{name: "trailing slash", baseURL: "http://localhost:8081/v1/", want: "http://localhost:8081/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.baseURL, "test-key", "test-model")
			if client.BaseURL != tt.want {
				t.Errorf("NewClient() BaseURL = %v, want %v", client.BaseURL, tt.want)
			}
			if client.Model != "test-model" {
				t.Errorf("NewClient() Model = %v, want test-model", client.Model)
			}
		})
	}
}

func TestClient_ChatWithMessages(t *testing.T) {
	tests := []struct {
		name      string
		params    ChatParams
		handler   func(t *testing.T, req openai.ChatCompletionRequest) (int, any)
		wantReply string
		wantErr   bool
	}{
		{
			name: "successful chat uses default model",
			handler: func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
				if req.Model != "test-model" {
					t.Errorf("model = %v, want test-model", req.Model)
				}
				if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
					t.Errorf("unexpected messages: %+v", req.Messages)
				}
				if req.ResponseFormat != nil {
					t.Error("plain chat should not request a response format")
				}
				return http.StatusOK, completion("  Hello there  ")
			},
			wantReply: "Hello there",
		},
		{
			name:   "params override model",
			params: ChatParams{Model: "other-model", MaxTokens: 64},
			handler: func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
				if req.Model != "other-model" {
					t.Errorf("model = %v, want other-model", req.Model)
				}
				if req.MaxTokens != 64 {
					t.Errorf("max_tokens = %v, want 64", req.MaxTokens)
				}
				return http.StatusOK, completion("ok")
			},
			wantReply: "ok",
		},
		{
			name: "no choices",
			handler: func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
				return http.StatusOK, openai.ChatCompletionResponse{ID: "empty"}
			},
			wantErr: true,
		},
		{
			name: "server error",
			handler: func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
				return http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.handler)
			client := NewClient(server.URL, "test-key", "test-model")

			messages := []Message{
				{Role: RoleSystem, Content: "be brief"},
				{Role: RoleUser, Content: "hi"},
			}
			got, err := client.ChatWithMessages(context.Background(), messages, tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChatWithMessages() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.wantReply {
				t.Errorf("ChatWithMessages() = %q, want %q", got, tt.wantReply)
			}
		})
	}
}

func TestClient_ChatJSON(t *testing.T) {
	type verdict struct {
		IsRelevant bool `json:"is_relevant"`
	}

	tests := []struct {
		name    string
		content string
		want    bool
		wantErr bool
	}{
		{name: "valid JSON", content: `{"is_relevant": true}`, want: true},
		{name: "fenced JSON", content: "```json\n{\"is_relevant\": true}\n```", want: true},
		{name: "repairable JSON", content: `{is_relevant: true,}`, want: true},
		{name: "empty content", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
				if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
					t.Error("ChatJSON should request a JSON object response")
				}
				return http.StatusOK, completion(tt.content)
			})
			client := NewClient(server.URL, "test-key", "test-model")

			var got verdict
			err := client.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "judge"}}, ChatParams{}, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChatJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.IsRelevant != tt.want {
				t.Errorf("ChatJSON() is_relevant = %v, want %v", got.IsRelevant, tt.want)
			}
		})
	}
}

func TestClient_ChatCancelled(t *testing.T) {
	server := chatServer(t, func(t *testing.T, req openai.ChatCompletionRequest) (int, any) {
		return http.StatusOK, completion("late")
	})
	client := NewClient(server.URL, "test-key", "test-model")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ChatWithMessages(ctx, []Message{{Role: RoleUser, Content: "hi"}}, ChatParams{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ChatWithMessages() error = %v, want context.Canceled", err)
	}
}
