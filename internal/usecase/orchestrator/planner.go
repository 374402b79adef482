package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"maestro/internal/domain"
	"maestro/internal/infra/tracer"
)

// PlanCoordination decides whether the prompt needs multiple agents and, if
// so, in what order. A stateless sibling of SelectAgent with the same
// failure policy: any error yields the single-agent fallback plan.
func (e *Engine) PlanCoordination(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.CoordinationPlan {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.plan_coordination",
		trace.WithAttributes(tracer.IntAttr("catalog.size", len(catalog))),
	)
	defer span.End()

	raw, err := e.gen.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: buildCoordinationPrompt(catalog),
		UserTurn:     fmt.Sprintf("Analyze this user request for multi-agent coordination: %q", userPrompt),
		Schema:       coordinationSchema,
		Model:        e.cfg.Model,
		MaxTokens:    e.cfg.MaxTokens,
		MaxRetries:   e.cfg.MaxRetries,
	})
	if err != nil {
		e.logger.Warn("coordination planning failed, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackPlan()
	}

	var plan domain.CoordinationPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		e.logger.Warn("coordination planning returned undecodable output, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackPlan()
	}
	if err := plan.Validate(); err != nil {
		e.logger.Warn("coordination plan violated invariants, using fallback", "error", err)
		tracer.RecordError(span, err)
		return fallbackPlan()
	}

	tracer.SetOK(span)
	return plan
}

func buildCoordinationPrompt(catalog []domain.AgentDescriptor) string {
	var b strings.Builder
	b.WriteString("You are the Master Agent Orchestrator analyzing whether a user request requires coordination between multiple specialized agents.\n\n")
	b.WriteString("Available Agents:\n")
	for _, agent := range catalog {
		fmt.Fprintf(&b, "\n- ID: %s\n- Name: %s\n- Description: %s\n- Capabilities: %s\n",
			agent.ID, agent.Name, agent.Description,
			strings.Join(ExtractCapabilities(agent), ", "))
	}
	b.WriteString(`
Analyze the user request to determine:
1. If it requires multiple agents working together
2. The optimal coordination strategy
3. The sequence and dependencies between agents
4. Whether final synthesis is needed

Examples of multi-agent scenarios:
- Research + Writing: Research agent gathers information, then writing agent creates content
- Policy + Purchase: Policy agent verifies guidelines, then SAP agent creates purchase order
- UX + Code Review: UX agent reviews interface copy, then code review agent checks implementation
- Research + Sports Booking: Research agent finds facility info, then booking agent reserves

Choose coordination strategies:
- Sequential: Agents work one after another with dependencies
- Parallel: Agents work simultaneously on different aspects
- Hierarchical: One primary agent coordinates with supporting agents

List agents in execution order: every dependsOn entry must reference an agent that appears earlier in the sequence.`)
	return b.String()
}

// fallbackPlan is the deterministic single-agent plan used on failure.
func fallbackPlan() domain.CoordinationPlan {
	return domain.CoordinationPlan{
		RequiresMultipleAgents: false,
		AgentSequence:          []domain.AgentStep{},
		CoordinationStrategy:   domain.StrategySequential,
		Reasoning:              "Error in analysis - defaulting to single agent approach",
		FinalSynthesis:         false,
	}
}
