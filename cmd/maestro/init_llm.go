package main

import (
	"fmt"
	"log/slog"

	"maestro/internal/adapter/llm"
	"maestro/internal/domain"
	"maestro/internal/infra/config"
)

// LLMComponents holds the provider registry and the resolved default chain.
type LLMComponents struct {
	Registry   *llm.Registry
	DefaultLLM domain.LLMProvider
}

// initLLM builds every configured provider, wraps each in a circuit breaker
// when enabled, and resolves the default with optional failover.
func initLLM(cfg *config.Config, log *slog.Logger) (*LLMComponents, error) {
	registry := llm.NewRegistry()

	cbCfg := cfg.LLM.CircuitBreaker
	for _, pc := range cfg.LLM.Providers {
		provider, err := createLLMProvider(pc, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}

		if cbCfg.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, cbCfg, log)
		}

		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cbCfg.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cbCfg.MaxFailures,
			"timeout", cbCfg.Timeout,
			"interval", cbCfg.Interval,
		)
	}

	defaultLLM, err := registry.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("default llm provider: %w", err)
	}

	if cfg.LLM.Failover.Enabled && len(cfg.LLM.Failover.Fallbacks) > 0 {
		var fallbacks []domain.LLMProvider
		for _, name := range cfg.LLM.Failover.Fallbacks {
			fb, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("failover provider %s: %w", name, err)
			}
			fallbacks = append(fallbacks, fb)
		}
		defaultLLM = llm.NewFailoverProvider(defaultLLM, fallbacks, log)
		log.Info("model failover enabled", "fallbacks", cfg.LLM.Failover.Fallbacks)
	}

	return &LLMComponents{
		Registry:   registry,
		DefaultLLM: defaultLLM,
	}, nil
}

func createLLMProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "anthropic":
		return llm.NewAnthropicProvider(pc, log), nil
	case "openai":
		return llm.NewOpenAIProvider(pc, log), nil
	case "bedrock":
		return llm.NewBedrockProvider(pc, log)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", pc.Type)
	}
}
