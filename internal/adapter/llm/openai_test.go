package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// errorReadCloser is an io.ReadCloser whose Read always returns an error.
type errorReadCloser struct{}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated body read error")
}

func (e *errorReadCloser) Close() error {
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.Default()
}

func TestOpenAIProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		resp := openaiResponse{
			ID:    "chatcmpl-test",
			Model: "gpt-5-mini",
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "Test response"}},
			},
			Usage: openaiUsage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "openai-test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "Test response" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want 8", resp.Usage.TotalTokens)
	}
	if provider.Name() != "openai-test" {
		t.Errorf("Name = %q", provider.Name())
	}
}

func TestOpenAIChatDefaultModel(t *testing.T) {
	var receivedReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedReq)

		resp := openaiResponse{
			ID:      "chatcmpl-dm",
			Model:   "gpt-5-mini",
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "ok"}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	// Send request with no model - should use provider's default
	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if receivedReq.Model != "gpt-5-mini" {
		t.Errorf("Request model = %q, want %q", receivedReq.Model, "gpt-5-mini")
	}
}

func TestOpenAIProviderErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{
			name:       "429 rate limit",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":{"message":"rate limit exceeded"}}`,
			wantErr:    domain.ErrRateLimit,
		},
		{
			name:       "401 unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       `{"error":{"message":"invalid api key"}}`,
			wantErr:    domain.ErrAuthInvalid,
		},
		{
			name:       "403 forbidden",
			statusCode: http.StatusForbidden,
			body:       `{"error":{"message":"access denied"}}`,
			wantErr:    domain.ErrAuthInvalid,
		},
		{
			name:       "413 context overflow",
			statusCode: http.StatusRequestEntityTooLarge,
			body:       `{"error":{"message":"prompt is too long"}}`,
			wantErr:    domain.ErrContextOverflow,
		},
		{
			name:       "500 server error",
			statusCode: http.StatusInternalServerError,
			body:       `{"error":{"message":"internal server error"}}`,
			wantErr:    domain.ErrProviderError,
		},
		{
			name:       "503 unavailable",
			statusCode: http.StatusServiceUnavailable,
			body:       `{"error":{"message":"overloaded"}}`,
			wantErr:    domain.ErrProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewOpenAIProvider(config.ProviderConfig{
				Name:    "test",
				BaseURL: server.URL,
				APIKey:  "test-key",
				Model:   "gpt-5-mini",
			}, newTestLogger())

			_, err := provider.Chat(context.Background(), domain.ChatRequest{
				Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			// Error message should include status code for debugging.
			if !strings.Contains(err.Error(), fmt.Sprintf("API error %d", tt.statusCode)) {
				t.Errorf("error should contain status code, got: %s", err.Error())
			}
		})
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{ID: "chatcmpl-empty", Model: "gpt-5-mini"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("expected ErrProviderError, got %v", err)
	}
}

func TestOpenAIChatInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{not valid json!!!`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
	})
	if err == nil {
		t.Fatal("expected error for invalid JSON response")
	}
	if !strings.Contains(err.Error(), "unmarshal response") {
		t.Errorf("error = %q, want it to contain 'unmarshal response'", err.Error())
	}
}

func TestOpenAIChatReadBodyError(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: "http://localhost",
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	// Replace the client's transport to return a response with a broken body.
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       &errorReadCloser{},
				Header:     make(http.Header),
			}, nil
		}),
	}

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if err == nil {
		t.Fatal("expected error from body read failure")
	}
	if !strings.Contains(err.Error(), "read response") {
		t.Errorf("error = %q, want it to contain 'read response'", err.Error())
	}
}

func TestOpenAIChatContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Name:    "test",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
	}, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "test"}},
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestOpenAIRequestConversion(t *testing.T) {
	temp := 0.2
	req := domain.ChatRequest{
		Model: "gpt-5-mini",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are helpful."},
			{Role: domain.RoleUser, Content: "Hello"},
		},
		MaxTokens:   1024,
		Temperature: temp,
	}

	oaReq := toOpenAIRequest(req)

	// OpenAI keeps system messages inline.
	if len(oaReq.Messages) != 2 {
		t.Fatalf("Messages len = %d, want 2", len(oaReq.Messages))
	}
	if oaReq.Messages[0].Role != "system" {
		t.Errorf("first role = %q, want %q", oaReq.Messages[0].Role, "system")
	}
	if oaReq.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", oaReq.MaxTokens)
	}
	if oaReq.Temperature == nil || *oaReq.Temperature != temp {
		t.Errorf("Temperature = %v, want %v", oaReq.Temperature, temp)
	}
}
