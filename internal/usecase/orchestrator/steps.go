package orchestrator

import (
	"time"

	"maestro/internal/domain"
)

// GenerateSteps narrates the fixed five-stage orchestration timeline. It is
// pure and deterministic: always five steps in the same order, timestamped
// at call time, with details only on the first two.
func GenerateSteps(userPrompt string, catalogSize int) []domain.OrchestrationStep {
	now := time.Now()
	count := catalogSize
	return []domain.OrchestrationStep{
		{
			Step:        1,
			Action:      domain.StepAnalyzing,
			Description: "Analyzing user request and understanding requirements",
			Timestamp:   now,
			Details:     &domain.StepDetails{Prompt: userPrompt},
		},
		{
			Step:        2,
			Action:      domain.StepSelecting,
			Description: "Evaluating available agents and capabilities",
			Timestamp:   now,
			Details:     &domain.StepDetails{AgentCount: &count},
		},
		{
			Step:        3,
			Action:      domain.StepDelegating,
			Description: "Delegating to selected agent or handling directly",
			Timestamp:   now,
		},
		{
			Step:        4,
			Action:      domain.StepVerifying,
			Description: "Verifying response quality and accuracy",
			Timestamp:   now,
		},
		{
			Step:        5,
			Action:      domain.StepFinalizing,
			Description: "Finalizing response and ensuring completeness",
			Timestamp:   now,
		},
	}
}
