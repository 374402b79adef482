package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolRef identifies a tool attached to an agent. The backing store records
// tools either as bare strings ("search") or as objects with a name field
// ({"name": "search", ...}); both forms decode to the same value.
type ToolRef struct {
	Name string
}

// UnmarshalJSON accepts either a JSON string or an object with a "name" field.
func (t *ToolRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tool ref must be a string or an object with a name: %w", err)
	}
	t.Name = obj.Name
	return nil
}

// MarshalJSON writes the canonical string form.
func (t ToolRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Name)
}

// AgentDescriptor is one candidate agent as assembled by the catalog.
// Descriptors are value snapshots: a catalog listing is never mutated
// during a single orchestration call.
type AgentDescriptor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"system_prompt"`
	Tools        []ToolRef `json:"tools,omitempty"`
	Slug         string    `json:"slug"`
}

// CatalogProvider lists the public agents available for delegation.
type CatalogProvider interface {
	ListPublicAgents(ctx context.Context) ([]AgentDescriptor, error)
}

// AgentResolver looks up a single agent by ID. Returns ErrNotFound when the
// agent does not exist or is no longer public.
type AgentResolver interface {
	GetAgentByID(ctx context.Context, id string) (*AgentDescriptor, error)
}
