// Package orchestrator implements the agent selection core: capability
// extraction, the selection engine, the coordination planner, the step
// narrator, and the orchestration facade that ties them together. Every
// external failure degrades to a deterministic local result so callers
// always receive a usable answer.
package orchestrator

import (
	"strings"
	"unicode"

	"maestro/internal/domain"
)

// promptKeywords maps system prompt substrings to capability tags,
// evaluated in order.
var promptKeywords = []struct {
	keyword string
	tag     string
}{
	{"research", "Research"},
	{"search", "Web Search"},
	{"analysis", "Analysis"},
	{"report", "Reporting"},
	{"purchase", "Purchase Orders"},
	{"booking", "Booking"},
	{"policy", "Policy"},
	{"sap", "SAP"},
	{"sport", "Sports"},
}

// slugKeywords maps slug substrings to capability tags, evaluated in order.
var slugKeywords = []struct {
	keyword string
	tag     string
}{
	{"research", "Research"},
	{"policy", "Policy"},
	{"purchase", "Procurement"},
	{"sport", "Sports"},
}

// ExtractCapabilities derives display capability tags for an agent from its
// system prompt, tool list, and slug. Duplicates are permitted: the tags are
// presentation context for the selection model, not a set the caller keys on.
// An agent matching nothing yields {"General Assistant"}.
func ExtractCapabilities(agent domain.AgentDescriptor) []string {
	var caps []string

	prompt := strings.ToLower(agent.SystemPrompt)
	for _, kw := range promptKeywords {
		if strings.Contains(prompt, kw.keyword) {
			caps = append(caps, kw.tag)
		}
	}

	for _, tool := range agent.Tools {
		if tool.Name != "" {
			caps = append(caps, titleCase(tool.Name))
		}
	}

	for _, kw := range slugKeywords {
		if strings.Contains(agent.Slug, kw.keyword) {
			caps = append(caps, kw.tag)
		}
	}

	if len(caps) == 0 {
		return []string{"General Assistant"}
	}
	return caps
}

// titleCase upper-cases the first rune only, leaving the rest untouched.
func titleCase(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
