package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"maestro/internal/domain"
	"maestro/internal/infra/tracer"
)

// Engine issues schema-constrained generation calls for agent selection and
// coordination planning. Both operations share the same failure policy: any
// error collapses into a deterministic local fallback, never an error return.
type Engine struct {
	gen    domain.StructuredGenerator
	cfg    EngineConfig
	logger *slog.Logger
}

// EngineConfig tunes the generation calls behind the engine.
type EngineConfig struct {
	Model      string
	MaxTokens  int
	MaxRetries int // transport-level retries per call
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewEngine creates a selection engine.
func NewEngine(gen domain.StructuredGenerator, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = discardLogger()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Engine{gen: gen, cfg: cfg, logger: logger}
}

// SelectAgent analyzes the prompt against the catalog and returns a scored,
// explained selection. The call never fails: transport errors, malformed
// output, and schema violations all yield the deterministic fallback.
func (e *Engine) SelectAgent(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.SelectionResult {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.select_agent",
		trace.WithAttributes(tracer.IntAttr("catalog.size", len(catalog))),
	)
	defer span.End()

	raw, err := e.gen.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: buildSelectionPrompt(catalog),
		UserTurn:     fmt.Sprintf("Analyze this user request and select the best agent: %q", userPrompt),
		Schema:       selectionSchema,
		Model:        e.cfg.Model,
		MaxTokens:    e.cfg.MaxTokens,
		MaxRetries:   e.cfg.MaxRetries,
	})
	if err != nil {
		e.logger.Warn("agent selection failed, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackSelection(catalog)
	}

	var result domain.SelectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		e.logger.Warn("agent selection returned undecodable output, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackSelection(catalog)
	}
	if err := result.Validate(); err != nil {
		e.logger.Warn("agent selection violated invariants, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackSelection(catalog)
	}

	tracer.SetOK(span)
	return result
}

// buildSelectionPrompt lists every candidate with its extracted capabilities
// and states the selection criteria.
func buildSelectionPrompt(catalog []domain.AgentDescriptor) string {
	var b strings.Builder
	b.WriteString("You are the Master Agent Orchestrator. Your role is to analyze user requests and select the most appropriate specialized agent to handle the task, or decide to handle it directly yourself.\n\n")
	b.WriteString("Available Agents:\n")
	for _, agent := range catalog {
		fmt.Fprintf(&b, "\n- ID: %s\n- Name: %s\n- Description: %s\n- Capabilities: %s\n- Slug: %s\n",
			agent.ID, agent.Name, agent.Description,
			strings.Join(ExtractCapabilities(agent), ", "), agent.Slug)
	}
	b.WriteString(`
Your analysis process should:
1. Understand the user's intent and requirements
2. Evaluate each available agent's suitability
3. Score each agent based on capability match (0-100)
4. Consider complexity, domain expertise, and specialized tools
5. Decide whether to delegate to an agent or handle directly
6. Provide detailed reasoning for your decision

Selection criteria:
- Score agents based on domain expertise and tool availability
- Consider whether the task requires specialized knowledge
- Evaluate if the agent's system prompt aligns with the request
- Factor in confidence level and verification needs
- Prefer direct handling for general queries that don't require specialized tools

Provide step-by-step analysis and clear reasoning for your decision.`)
	return b.String()
}

// fallbackSelection is the deterministic degraded result used when the
// generation call fails. It is computed with zero external calls.
func fallbackSelection(catalog []domain.AgentDescriptor) domain.SelectionResult {
	candidates := make([]domain.AgentCandidate, 0, len(catalog))
	for _, agent := range catalog {
		candidates = append(candidates, domain.AgentCandidate{
			ID:           agent.ID,
			Name:         agent.Name,
			Description:  agent.Description,
			Capabilities: ExtractCapabilities(agent),
			Score:        50,
			Reasoning:    "Error in analysis - using fallback scoring",
		})
	}
	return domain.SelectionResult{
		SelectedAgent:        nil,
		AvailableAgents:      candidates,
		Reasoning:            "Failed to analyze request due to technical issues, handling directly",
		Confidence:           50,
		RequiresVerification: true,
		AnalysisSteps: []string{
			"Encountered technical error in analysis",
			"Falling back to direct handling",
			"Will monitor and verify response quality",
		},
		FinalDecision: "Handling request directly due to analysis error",
	}
}
