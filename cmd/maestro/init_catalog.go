package main

import (
	"fmt"
	"log/slog"

	"maestro/internal/adapter/catalog"
	"maestro/internal/domain"
	"maestro/internal/infra/config"
)

// CatalogComponents holds the wired catalog: the listing provider, the
// by-id resolver, and an optional background syncer.
type CatalogComponents struct {
	Provider domain.CatalogProvider
	Resolver domain.AgentResolver
	Syncer   *catalog.Syncer
	Close    func()
}

// initCatalog wires the agent catalog per cfg.Catalog.Source:
// "static" serves agents straight from config, "http" reads the remote
// backing store per call, and "sqlite" serves a local mirror that the
// syncer refreshes from the remote store when sync is enabled.
func initCatalog(cfg *config.Config, log *slog.Logger) (*CatalogComponents, error) {
	noop := func() {}

	switch cfg.Catalog.Source {
	case "static":
		static := catalog.NewStaticCatalog(cfg.Catalog.Agents)
		return &CatalogComponents{Provider: static, Resolver: static, Close: noop}, nil

	case "http":
		remote := catalog.NewHTTPCatalog(cfg.Catalog.HTTP, log)
		return &CatalogComponents{Provider: remote, Resolver: remote, Close: noop}, nil

	case "sqlite":
		store, err := catalog.NewSQLiteCatalog(cfg.Catalog.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open catalog store: %w", err)
		}
		c := &CatalogComponents{
			Provider: store,
			Resolver: store,
			Close:    func() { store.Close() },
		}
		if cfg.Catalog.Sync.Enabled {
			remote := catalog.NewHTTPCatalog(cfg.Catalog.HTTP, log)
			c.Syncer = catalog.NewSyncer(remote, store, cfg.Catalog.Sync.Schedule, log)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown catalog source: %s", cfg.Catalog.Source)
	}
}
