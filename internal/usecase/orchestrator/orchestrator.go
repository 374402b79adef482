package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"maestro/internal/domain"
	"maestro/internal/infra/tracer"
)

// Orchestrator is the facade external callers use. It snapshots the catalog,
// runs selection, narrates the timeline, and attaches a user-facing
// suggestion. It never returns an error for operational failures: a dead
// catalog, a failed generation, or a resolution miss all degrade to a
// well-formed result.
type Orchestrator struct {
	engine   *Engine
	catalog  domain.CatalogProvider
	resolver domain.AgentResolver // optional, nil = no suggestion enrichment
	logger   *slog.Logger
}

// New creates an orchestration facade.
func New(engine *Engine, catalog domain.CatalogProvider, resolver domain.AgentResolver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Orchestrator{
		engine:   engine,
		catalog:  catalog,
		resolver: resolver,
		logger:   logger,
	}
}

// Orchestrate analyzes the prompt end to end: selection plus the replayable
// timeline plus a suggestion. One catalog snapshot serves both capability
// summarization and suggestion resolution, so a mid-call catalog change
// cannot produce a dangling selection.
func (o *Orchestrator) Orchestrate(ctx context.Context, userPrompt string) *domain.OrchestrationResult {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.orchestrate")
	defer span.End()

	requestID := ulid.Make().String()

	catalog, err := o.catalog.ListPublicAgents(ctx)
	if err != nil {
		o.logger.Warn("catalog unavailable, orchestrating with empty catalog",
			"request_id", requestID, "error", err)
		catalog = nil
	}

	steps := GenerateSteps(userPrompt, len(catalog))
	selection := o.engine.SelectAgent(ctx, userPrompt, catalog)
	suggestion := o.buildSuggestion(ctx, userPrompt, catalog, selection)

	o.logger.Info("orchestration completed",
		"request_id", requestID,
		"agents", len(catalog),
		"selected", selection.SelectedAgent != nil,
		"confidence", selection.Confidence,
	)
	tracer.SetOK(span)

	return &domain.OrchestrationResult{
		RequestID:  requestID,
		UserPrompt: userPrompt,
		Selection:  selection,
		Steps:      steps,
		Suggestion: suggestion,
		Timestamp:  time.Now(),
	}
}

// buildSuggestion resolves the selected agent into an actionable hint.
// Resolution prefers the in-call catalog snapshot; the resolver is consulted
// only when the snapshot lacks the agent. A miss degrades to direct_response.
func (o *Orchestrator) buildSuggestion(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor, selection domain.SelectionResult) domain.Suggestion {
	direct := domain.Suggestion{
		Action:    domain.ActionDirectResponse,
		Reasoning: "I can help you directly with this request.",
	}
	if selection.SelectedAgent == nil {
		return direct
	}

	id := *selection.SelectedAgent
	var resolved *domain.AgentDescriptor
	for i := range catalog {
		if catalog[i].ID == id {
			resolved = &catalog[i]
			break
		}
	}
	if resolved == nil && o.resolver != nil {
		desc, err := o.resolver.GetAgentByID(ctx, id)
		if err != nil {
			o.logger.Warn("selected agent no longer resolvable, suggesting direct response",
				"agent_id", id, "error", err)
			return direct
		}
		resolved = desc
	}
	if resolved == nil {
		return direct
	}

	return domain.Suggestion{
		Action:     domain.ActionSwitchToAgent,
		AgentSlug:  resolved.Slug,
		AgentName:  resolved.Name,
		Confidence: selection.Confidence,
		Reasoning: fmt.Sprintf(
			"Based on your request %q, I recommend using %s. You can switch to this agent by clicking the suggestion or typing \"@%s\".",
			userPrompt, resolved.Name, resolved.Slug),
	}
}
