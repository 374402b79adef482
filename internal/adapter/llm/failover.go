package llm

import (
	"context"
	"fmt"
	"log/slog"

	"maestro/internal/domain"
)

var _ domain.LLMProvider = (*FailoverProvider)(nil)

// FailoverProvider wraps a primary LLM provider with fallback providers.
// If the primary fails, it tries each fallback in order.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable provider.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	if logger == nil {
		logger = discardLogger()
	}
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat tries the primary provider first, then each fallback on failure.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	f.logger.Warn("primary LLM failed, trying fallbacks",
		"primary", f.primary.Name(), "error", err)

	// Collect all errors for better diagnostics
	allErrors := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}

	for _, fb := range f.fallbacks {
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			f.logger.Info("failover succeeded", "provider", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback LLM failed", "provider", fb.Name(), "error", err)
		allErrors = append(allErrors, fmt.Sprintf("%s: %v", fb.Name(), err))
	}

	// Return aggregated error with all provider failures
	return nil, fmt.Errorf("all providers failed: [%s]", joinErrors(allErrors))
}

// joinErrors joins error messages with "; " separator
func joinErrors(errors []string) string {
	if len(errors) == 0 {
		return ""
	}
	result := errors[0]
	for i := 1; i < len(errors); i++ {
		result += "; " + errors[i]
	}
	return result
}

// Name returns a composite name.
func (f *FailoverProvider) Name() string {
	return f.primary.Name() + "+failover"
}
