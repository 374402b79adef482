package domain

import (
	"context"
	"encoding/json"
)

// GenerationRequest describes one schema-constrained generation call.
type GenerationRequest struct {
	SystemPrompt string
	UserTurn     string
	Schema       json.RawMessage // optional JSON Schema the output must satisfy
	Model        string
	MaxTokens    int
	Temperature  float64
	MaxRetries   int // total attempts = MaxRetries + 1; 0 means the implementation default
}

// StructuredGenerator produces JSON conforming to a declared schema. The
// caller has no visibility into the provider or model behind it.
type StructuredGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
}
