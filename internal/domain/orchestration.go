package domain

import (
	"fmt"
	"time"
)

// AgentCandidate is the scored evaluation of one catalog agent.
// Scores are advisory: the selected agent need not be the highest scorer,
// because the model weighs confidence and verification needs holistically.
type AgentCandidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Score        int      `json:"score"`
	Reasoning    string   `json:"reasoning"`
}

// SelectionResult is the outcome of one agent-selection analysis.
// A nil SelectedAgent means "handle directly, no delegation".
type SelectionResult struct {
	SelectedAgent        *string          `json:"selectedAgent"`
	AvailableAgents      []AgentCandidate `json:"availableAgents"`
	Reasoning            string           `json:"reasoning"`
	Confidence           int              `json:"confidence"`
	RequiresVerification bool             `json:"requiresVerification"`
	AnalysisSteps        []string         `json:"analysisSteps"`
	FinalDecision        string           `json:"finalDecision"`
}

// Validate checks the structural invariants of a selection result:
// bounded confidence and scores, and a selected agent that appears in the
// candidate list. Used to reject partially-invalid model output.
func (r *SelectionResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d outside [0,100]", ErrSchemaViolation, r.Confidence)
	}
	for _, c := range r.AvailableAgents {
		if c.Score < 0 || c.Score > 100 {
			return fmt.Errorf("%w: agent %q score %d outside [0,100]", ErrSchemaViolation, c.ID, c.Score)
		}
	}
	if r.SelectedAgent != nil {
		found := false
		for _, c := range r.AvailableAgents {
			if c.ID == *r.SelectedAgent {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: selected agent %q not among available agents", ErrSchemaViolation, *r.SelectedAgent)
		}
	}
	return nil
}

// Coordination strategies.
const (
	StrategySequential   = "sequential"
	StrategyParallel     = "parallel"
	StrategyHierarchical = "hierarchical"
)

// AgentStep is one entry in a multi-agent coordination sequence.
type AgentStep struct {
	AgentID        string   `json:"agentId"`
	Purpose        string   `json:"purpose"`
	ExpectedOutput string   `json:"expectedOutput"`
	DependsOn      []string `json:"dependsOn,omitempty"`
}

// CoordinationPlan describes whether and how multiple agents should jointly
// serve one request.
type CoordinationPlan struct {
	RequiresMultipleAgents bool        `json:"requiresMultipleAgents"`
	AgentSequence          []AgentStep `json:"agentSequence"`
	CoordinationStrategy   string      `json:"coordinationStrategy"`
	Reasoning              string      `json:"reasoning"`
	FinalSynthesis         bool        `json:"finalSynthesis"`
}

// Validate checks that the strategy is a known value and that every
// dependsOn entry references an agent listed strictly earlier in the
// sequence. Forward and self references are rejected.
func (p *CoordinationPlan) Validate() error {
	switch p.CoordinationStrategy {
	case StrategySequential, StrategyParallel, StrategyHierarchical:
	default:
		return fmt.Errorf("%w: unknown coordination strategy %q", ErrSchemaViolation, p.CoordinationStrategy)
	}

	seen := make(map[string]bool, len(p.AgentSequence))
	for _, step := range p.AgentSequence {
		for _, dep := range step.DependsOn {
			if dep == step.AgentID {
				return fmt.Errorf("%w: agent %q depends on itself", ErrSchemaViolation, step.AgentID)
			}
			if !seen[dep] {
				return fmt.Errorf("%w: agent %q depends on %q which is not listed earlier", ErrSchemaViolation, step.AgentID, dep)
			}
		}
		seen[step.AgentID] = true
	}
	return nil
}

// StepAction names one stage of the orchestration timeline.
type StepAction string

// The five fixed timeline stages, in replay order.
const (
	StepAnalyzing  StepAction = "analyzing"
	StepSelecting  StepAction = "selecting"
	StepDelegating StepAction = "delegating"
	StepVerifying  StepAction = "verifying"
	StepFinalizing StepAction = "finalizing"
)

// StepDetails is the optional payload attached to a timeline step.
type StepDetails struct {
	Prompt     string `json:"prompt,omitempty"`
	AgentCount *int   `json:"agentCount,omitempty"`
}

// OrchestrationStep is one entry in the fixed five-stage UI timeline.
// All five steps are created together at call time and never updated;
// the UI replays them progressively.
type OrchestrationStep struct {
	Step        int          `json:"step"`
	Action      StepAction   `json:"action"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	Details     *StepDetails `json:"details,omitempty"`
}

// Suggestion actions.
const (
	ActionSwitchToAgent  = "switch_to_agent"
	ActionDirectResponse = "direct_response"
)

// Suggestion is the human-actionable hint attached to an orchestration
// result. Agent fields are populated only for switch_to_agent.
type Suggestion struct {
	Action     string `json:"action"`
	AgentSlug  string `json:"agentSlug,omitempty"`
	AgentName  string `json:"agentName,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
	Reasoning  string `json:"reasoning"`
}

// OrchestrationResult is the complete façade response: the selection, the
// replayable timeline, and the user-facing suggestion.
type OrchestrationResult struct {
	RequestID  string              `json:"request_id"`
	UserPrompt string              `json:"user_prompt"`
	Selection  SelectionResult     `json:"selection"`
	Steps      []OrchestrationStep `json:"steps"`
	Suggestion Suggestion          `json:"suggestion"`
	Timestamp  time.Time           `json:"timestamp"`
}
