package structuredgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"maestro/internal/domain"
)

type scriptedProvider struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedProvider) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	content := ""
	if i < len(s.responses) {
		content = s.responses[i]
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: content}}, nil
}

func (s *scriptedProvider) Name() string { return s.name }

func newTestClient(p domain.LLMProvider) *Client {
	return NewClient(p, slog.Default())
}

func TestGenerateValidJSON(t *testing.T) {
	p := &scriptedProvider{name: "mock", responses: []string{`{"answer": 42}`}}
	c := newTestClient(p)

	out, err := c.Generate(context.Background(), domain.GenerationRequest{
		SystemPrompt: "Answer analytically.",
		UserTurn:     "What is the answer?",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var parsed map[string]int
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if parsed["answer"] != 42 {
		t.Errorf("answer = %d, want 42", parsed["answer"])
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestGenerateStripsCodeFences(t *testing.T) {
	p := &scriptedProvider{name: "mock", responses: []string{
		"```json\n{\"ok\": true}\n```",
	}}
	c := newTestClient(p)

	out, err := c.Generate(context.Background(), domain.GenerationRequest{UserTurn: "go"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(out) != `{"ok": true}` {
		t.Errorf("out = %s", out)
	}
}

func TestGenerateRetriesInvalidJSON(t *testing.T) {
	p := &scriptedProvider{name: "mock", responses: []string{
		"sorry, I cannot do that",
		`{"ok": true}`,
	}}
	c := newTestClient(p)

	out, err := c.Generate(context.Background(), domain.GenerationRequest{UserTurn: "go", MaxRetries: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(out) != `{"ok": true}` {
		t.Errorf("out = %s", out)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestGenerateSchemaRejection(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"confidence": {"type": "number", "minimum": 0, "maximum": 100}},
		"required": ["confidence"]
	}`)

	p := &scriptedProvider{name: "mock", responses: []string{
		`{"confidence": 150}`,
		`{"confidence": 150}`,
		`{"confidence": 150}`,
	}}
	c := newTestClient(p)

	_, err := c.Generate(context.Background(), domain.GenerationRequest{
		UserTurn:   "go",
		Schema:     schema,
		MaxRetries: 2,
	})
	if err == nil {
		t.Fatal("expected error for schema violation")
	}
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateSchemaAccepts(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"confidence": {"type": "number", "minimum": 0, "maximum": 100}},
		"required": ["confidence"]
	}`)

	p := &scriptedProvider{name: "mock", responses: []string{`{"confidence": 85}`}}
	c := newTestClient(p)

	out, err := c.Generate(context.Background(), domain.GenerationRequest{UserTurn: "go", Schema: schema})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(out), "85") {
		t.Errorf("out = %s", out)
	}
}

func TestGenerateAuthErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{name: "mock", errs: []error{
		fmt.Errorf("%w: bad key", domain.ErrAuthInvalid),
		fmt.Errorf("%w: bad key", domain.ErrAuthInvalid),
	}}
	c := newTestClient(p)

	_, err := c.Generate(context.Background(), domain.GenerationRequest{UserTurn: "go", MaxRetries: 2})
	if err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1 (auth errors must not be retried)", p.calls)
	}
}

func TestGenerateContextCancelled(t *testing.T) {
	p := &scriptedProvider{name: "mock", errs: []error{context.Canceled}}
	c := newTestClient(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, domain.GenerationRequest{UserTurn: "go", MaxRetries: 2})
	if err == nil {
		t.Fatal("expected error")
	}
	if p.calls > 1 {
		t.Errorf("calls = %d, cancellation must stop retries", p.calls)
	}
}

func TestGenerateEmptyOutput(t *testing.T) {
	p := &scriptedProvider{name: "mock", responses: []string{"", "", ""}}
	c := newTestClient(p)

	_, err := c.Generate(context.Background(), domain.GenerationRequest{UserTurn: "go", MaxRetries: 1})
	if err == nil {
		t.Fatal("expected error for empty output")
	}
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := retryBackoff(attempt)
		if d < baseRetryDelay {
			t.Errorf("attempt %d: delay %v below base", attempt, d)
		}
		// Cap plus up to 25% jitter.
		if d > maxRetryDelay+maxRetryDelay/4 {
			t.Errorf("attempt %d: delay %v above cap", attempt, d)
		}
	}
	if retryBackoff(0) > time.Second {
		t.Error("first retry should be under a second")
	}
}
