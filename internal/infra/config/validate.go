package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLLM(cfg, ve)
	validateOrchestrator(cfg, ve)
	validateCatalog(cfg, ve)
	validateGateway(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateLLM(cfg *Config, ve *ValidationError) {
	names := map[string]bool{}
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name is required", i)
			continue
		}
		if names[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		names[p.Name] = true
		switch p.Type {
		case "anthropic", "openai", "bedrock":
		case "":
			ve.Add("llm.providers[%d] (%s): type is required", i, p.Name)
		default:
			ve.Add("llm.providers[%d] (%s): unknown type %q", i, p.Name, p.Type)
		}
	}
	if len(cfg.LLM.Providers) > 0 && !names[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q is not a configured provider", cfg.LLM.DefaultProvider)
	}
	for _, fb := range cfg.LLM.Failover.Fallbacks {
		if !names[fb] {
			ve.Add("llm.failover.fallbacks: %q is not a configured provider", fb)
		}
	}
}

func validateOrchestrator(cfg *Config, ve *ValidationError) {
	if cfg.Orchestrator.MaxRetries < 0 {
		ve.Add("orchestrator.max_retries must be >= 0")
	}
	if cfg.Orchestrator.MaxTokens <= 0 {
		ve.Add("orchestrator.max_tokens must be > 0")
	}
	if cfg.Orchestrator.Timeout <= 0 {
		ve.Add("orchestrator.timeout must be > 0")
	}
}

func validateCatalog(cfg *Config, ve *ValidationError) {
	switch cfg.Catalog.Source {
	case "static":
		ids := map[string]bool{}
		slugs := map[string]bool{}
		for i, a := range cfg.Catalog.Agents {
			if a.ID == "" {
				ve.Add("catalog.agents[%d].id is required", i)
			}
			if a.Slug == "" {
				ve.Add("catalog.agents[%d].slug is required", i)
			}
			if ids[a.ID] {
				ve.Add("catalog.agents[%d]: duplicate id %q", i, a.ID)
			}
			if a.Slug != "" && slugs[a.Slug] {
				ve.Add("catalog.agents[%d]: duplicate slug %q", i, a.Slug)
			}
			ids[a.ID] = true
			slugs[a.Slug] = true
		}
	case "sqlite":
		if cfg.Catalog.SQLite.Path == "" {
			ve.Add("catalog.sqlite.path is required when catalog.source is sqlite")
		}
	case "http":
		if cfg.Catalog.HTTP.BaseURL == "" {
			ve.Add("catalog.http.base_url is required when catalog.source is http")
		}
	default:
		ve.Add("catalog.source must be one of static, sqlite, http (got %q)", cfg.Catalog.Source)
	}
	if cfg.Catalog.Sync.Enabled {
		if cfg.Catalog.HTTP.BaseURL == "" {
			ve.Add("catalog.sync requires catalog.http.base_url")
		}
		if cfg.Catalog.SQLite.Path == "" {
			ve.Add("catalog.sync requires catalog.sqlite.path")
		}
		if cfg.Catalog.Sync.Schedule == "" {
			ve.Add("catalog.sync.schedule is required when sync is enabled")
		}
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required")
	}
	if cfg.Gateway.RatePerSecond < 0 {
		ve.Add("gateway.rate_per_second must be >= 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format must be text or json (got %q)", cfg.Logger.Format)
	}
	if cfg.Logger.RingSize < 0 {
		ve.Add("logger.ring_size must be >= 0")
	}
}
