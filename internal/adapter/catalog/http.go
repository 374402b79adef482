package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
)

const maxCatalogBody = 4 << 20 // 4MB

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// HTTPCatalog fetches agents from a remote catalog service.
type HTTPCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPCatalog creates a catalog client for the given endpoint.
func NewHTTPCatalog(cfg config.HTTPCatalogConfig, logger *slog.Logger) *HTTPCatalog {
	if logger == nil {
		logger = discardLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCatalog{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListPublicAgents implements domain.CatalogProvider.
func (c *HTTPCatalog) ListPublicAgents(ctx context.Context) ([]domain.AgentDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents?is_public=true", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainError("HTTPCatalog.ListPublicAgents", domain.ErrCatalogUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainError("HTTPCatalog.ListPublicAgents", domain.ErrCatalogUnavailable,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var agents []domain.AgentDescriptor
	if err := json.Unmarshal(body, &agents); err != nil {
		return nil, fmt.Errorf("unmarshal agents: %w", err)
	}

	c.logger.Debug("catalog fetched", "count", len(agents))
	return agents, nil
}

// GetAgentByID implements domain.AgentResolver.
func (c *HTTPCatalog) GetAgentByID(ctx context.Context, id string) (*domain.AgentDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewDomainError("HTTPCatalog.GetAgentByID", domain.ErrCatalogUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.NewDomainError("HTTPCatalog.GetAgentByID", domain.ErrNotFound, id)
	default:
		return nil, domain.NewDomainError("HTTPCatalog.GetAgentByID", domain.ErrCatalogUnavailable,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var desc domain.AgentDescriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("unmarshal agent: %w", err)
	}
	return &desc, nil
}

var (
	_ domain.CatalogProvider = (*HTTPCatalog)(nil)
	_ domain.AgentResolver   = (*HTTPCatalog)(nil)
)
