package orchestrator

import "encoding/json"

// selectionSchema constrains the selection engine's generation output.
var selectionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"selectedAgent": {
			"type": ["string", "null"],
			"description": "The ID of the selected agent, or null if direct response is preferred"
		},
		"availableAgents": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"description": {"type": "string"},
					"capabilities": {"type": "array", "items": {"type": "string"}},
					"score": {"type": "number", "minimum": 0, "maximum": 100},
					"reasoning": {"type": "string"}
				},
				"required": ["id", "name", "description", "capabilities", "score", "reasoning"]
			}
		},
		"reasoning": {
			"type": "string",
			"description": "Overall reasoning for the selection decision"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 100,
			"description": "Confidence level in the selection"
		},
		"requiresVerification": {
			"type": "boolean",
			"description": "Whether the response requires verification"
		},
		"analysisSteps": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Step-by-step analysis of the user request"
		},
		"finalDecision": {
			"type": "string",
			"description": "Final decision explanation"
		}
	},
	"required": ["selectedAgent", "availableAgents", "reasoning", "confidence", "requiresVerification", "analysisSteps", "finalDecision"]
}`)

// coordinationSchema constrains the coordination planner's generation output.
var coordinationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"requiresMultipleAgents": {
			"type": "boolean",
			"description": "Whether the task requires coordination between multiple agents"
		},
		"agentSequence": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"agentId": {"type": "string"},
					"purpose": {"type": "string"},
					"expectedOutput": {"type": "string"},
					"dependsOn": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["agentId", "purpose", "expectedOutput"]
			}
		},
		"coordinationStrategy": {
			"type": "string",
			"enum": ["sequential", "parallel", "hierarchical"]
		},
		"reasoning": {
			"type": "string",
			"description": "Why this coordination approach was chosen"
		},
		"finalSynthesis": {
			"type": "boolean",
			"description": "Whether results need to be synthesized by the orchestrator"
		}
	},
	"required": ["requiresMultipleAgents", "agentSequence", "coordinationStrategy", "reasoning", "finalSynthesis"]
}`)
