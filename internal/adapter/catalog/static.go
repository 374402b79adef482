// Package catalog provides agent catalog sources: a static config-backed
// catalog, a SQLite-backed store, an HTTP catalog client, and a cron-driven
// syncer that mirrors a remote catalog into the local store.
package catalog

import (
	"context"
	"strings"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
)

// StaticCatalog serves agents defined in the configuration file.
type StaticCatalog struct {
	agents []domain.AgentDescriptor
	byID   map[string]domain.AgentDescriptor
}

// NewStaticCatalog builds a catalog from config entries. Only entries marked
// public are listed; resolution by ID covers all entries.
func NewStaticCatalog(entries []config.AgentEntryConfig) *StaticCatalog {
	c := &StaticCatalog{byID: make(map[string]domain.AgentDescriptor, len(entries))}
	for _, e := range entries {
		desc := domain.AgentDescriptor{
			ID:           e.ID,
			Name:         e.Name,
			Description:  e.Description,
			SystemPrompt: e.SystemPrompt,
			Slug:         e.Slug,
		}
		for _, tool := range e.Tools {
			desc.Tools = append(desc.Tools, domain.ToolRef{Name: tool})
		}
		c.byID[e.ID] = desc
		if e.Public {
			c.agents = append(c.agents, desc)
		}
	}
	return c
}

// ListPublicAgents implements domain.CatalogProvider.
func (c *StaticCatalog) ListPublicAgents(_ context.Context) ([]domain.AgentDescriptor, error) {
	out := make([]domain.AgentDescriptor, len(c.agents))
	copy(out, c.agents)
	return out, nil
}

// GetAgentByID implements domain.AgentResolver.
func (c *StaticCatalog) GetAgentByID(_ context.Context, id string) (*domain.AgentDescriptor, error) {
	desc, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, domain.NewDomainError("StaticCatalog.GetAgentByID", domain.ErrNotFound, id)
	}
	return &desc, nil
}

var (
	_ domain.CatalogProvider = (*StaticCatalog)(nil)
	_ domain.AgentResolver   = (*StaticCatalog)(nil)
)
