// Package compose holds the small content-composition helpers that sit next
// to orchestration: report titles and search query planning. Unlike the
// selection engine these return errors; callers decide how to degrade.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"maestro/internal/domain"
	"maestro/internal/infra/tracer"
)

var titleSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string"}
	},
	"required": ["title"],
	"additionalProperties": false
}`)

var queriesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"queries": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 3,
			"maxItems": 3
		}
	},
	"required": ["queries"],
	"additionalProperties": false
}`)

// Composer issues the structured calls behind title generation and search
// query planning.
type Composer struct {
	gen    domain.StructuredGenerator
	model  string
	logger *slog.Logger
}

// New creates a composer bound to a structured generator.
func New(gen domain.StructuredGenerator, model string, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Composer{gen: gen, model: model, logger: logger}
}

// GenerateTitle produces a short report title for the prompt.
func (c *Composer) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "compose.generate_title")
	defer span.End()

	raw, err := c.gen.Generate(ctx, domain.GenerationRequest{
		UserTurn: fmt.Sprintf("Write a short report title (max 12 words) for:\n%q. Only capitalize the first word; no trailing punctuation; avoid the word \"report\".", prompt),
		Schema:   titleSchema,
		Model:    c.model,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("compose.GenerateTitle", err)
	}

	var out struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("compose.GenerateTitle", err)
	}
	title := strings.TrimSpace(out.Title)
	if title == "" {
		err := domain.NewDomainError("compose.GenerateTitle", domain.ErrGenerationFailed, "empty title")
		tracer.RecordError(span, err)
		return "", err
	}

	c.logger.Debug("title generated", "title", title)
	tracer.SetOK(span)
	return title, nil
}

// PlanSearchQueries produces exactly three search queries suitable as
// section headings for the prompt.
func (c *Composer) PlanSearchQueries(ctx context.Context, prompt string) ([]string, error) {
	ctx, span := tracer.StartSpan(ctx, "compose.plan_search_queries")
	defer span.End()

	raw, err := c.gen.Generate(ctx, domain.GenerationRequest{
		UserTurn: fmt.Sprintf("Generate exactly 3 search queries for %q that would make good H2 sections.", prompt),
		Schema:   queriesSchema,
		Model:    c.model,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("compose.PlanSearchQueries", err)
	}

	var out struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("compose.PlanSearchQueries", err)
	}
	if len(out.Queries) != 3 {
		err := domain.NewDomainError("compose.PlanSearchQueries", domain.ErrSchemaViolation,
			fmt.Sprintf("expected 3 queries, got %d", len(out.Queries)))
		tracer.RecordError(span, err)
		return nil, err
	}

	tracer.SetOK(span)
	return out.Queries, nil
}
