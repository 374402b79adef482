// Package structuredgen runs schema-constrained LLM generations. It sends a
// JSON-only instruction alongside the caller's prompt, strips markdown fences
// from the model output, validates the result against a JSON Schema, and
// retries transient failures with exponential backoff.
package structuredgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
	"github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/otel/trace"

	"maestro/internal/domain"
	"maestro/internal/infra/tracer"
)

// Retry constants.
const (
	defaultMaxRetries = 2
	baseRetryDelay    = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// jsonOnlyPreamble is appended to every system prompt so the model returns a
// bare JSON value instead of prose.
const jsonOnlyPreamble = "You are a JSON-only function. " +
	"Return ONLY a valid JSON value. " +
	"Do not wrap in markdown fences. " +
	"Do not include commentary. " +
	"Do not call tools."

// Client performs structured generations against an LLM provider. It
// implements domain.StructuredGenerator.
type Client struct {
	provider domain.LLMProvider
	logger   *slog.Logger
}

// NewClient creates a structured generation client.
func NewClient(provider domain.LLMProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{provider: provider, logger: logger}
}

var _ domain.StructuredGenerator = (*Client)(nil)

// Generate calls the provider and returns the validated JSON output.
// Schema violations and auth failures are not retried; rate limits,
// provider errors, and malformed output are retried with backoff.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (json.RawMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "structuredgen.generate",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", c.provider.Name()),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	system := jsonOnlyPreamble
	if req.SystemPrompt != "" {
		system = req.SystemPrompt + "\n\n" + jsonOnlyPreamble
	}
	chatReq := domain.ChatRequest{
		Model: req.Model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: system},
			{Role: domain.RoleUser, Content: req.UserTurn},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	c.logger.Debug("structured generation starting",
		"provider", c.provider.Name(),
		"model", req.Model,
		"prompt_tokens_est", estimateTokens(req.SystemPrompt+req.UserTurn),
	)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		out, err := c.generateOnce(ctx, chatReq, req.Schema)
		if err == nil {
			tracer.SetOK(span)
			return out, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if errors.Is(err, domain.ErrAuthInvalid) {
			break
		}

		if attempt < maxRetries {
			delay := retryBackoff(attempt)
			c.logger.Info("retrying structured generation",
				"attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				tracer.RecordError(span, ctx.Err())
				return nil, ctx.Err()
			}
		}
	}

	tracer.RecordError(span, lastErr)
	return nil, domain.NewDomainError("structuredgen.Generate", domain.ErrGenerationFailed, lastErr.Error())
}

func (c *Client) generateOnce(ctx context.Context, chatReq domain.ChatRequest, schema json.RawMessage) (json.RawMessage, error) {
	resp, err := c.provider.Chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(resp.Message.Content)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty model output", domain.ErrGenerationFailed)
	}
	raw = stripCodeFences(raw)

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v (raw: %s)", domain.ErrGenerationFailed, err, truncate(raw, 500))
	}

	if len(schema) > 0 {
		if err := validateAgainstSchema(schema, parsed); err != nil {
			return nil, err
		}
	}

	return json.RawMessage(raw), nil
}

// validateAgainstSchema validates parsed JSON against a JSON Schema.
func validateAgainstSchema(schemaBytes json.RawMessage, data any) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(schemaBytes))
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	result := schema.Validate(data)
	if !result.IsValid() {
		return domain.NewDomainError("structuredgen.validate", domain.ErrSchemaViolation, fmt.Sprintf("%s", result.Error()))
	}
	return nil
}

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes markdown code fences if the LLM wrapped its output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// truncate shortens a string to maxLen bytes on a clean UTF-8 boundary,
// appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := 0
	for i := range s {
		if i > maxLen {
			break
		}
		end = i
	}
	return s[:end] + "..."
}

// estimateTokens counts prompt tokens with the cl100k_base encoding. Falls
// back to a byte heuristic when the encoding is unavailable offline.
func estimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
