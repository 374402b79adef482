package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
	"maestro/internal/infra/tracer"
)

// OpenAIProvider implements domain.LLMProvider for the OpenAI Chat Completions API.
type OpenAIProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIProvider creates a provider for the OpenAI Chat Completions API.
// It also works with OpenAI-compatible servers when BaseURL is overridden.
func NewOpenAIProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = discardLogger()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}

	body, err := json.Marshal(toOpenAIRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}

	respBody, err := doJSONRequest(ctx, p.client, p.baseURL+"/chat/completions", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var oaResp openaiResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result, err := fromOpenAIResponse(oaResp)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *OpenAIProvider) Name() string { return p.name }

// --- OpenAI API wire types ---

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Created int64          `json:"created"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toOpenAIRequest(req domain.ChatRequest) openaiRequest {
	oaReq := openaiRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}

	if req.Temperature > 0 {
		t := req.Temperature
		oaReq.Temperature = &t
	}

	for _, m := range req.Messages {
		oaReq.Messages = append(oaReq.Messages, openaiMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return oaReq
}

func fromOpenAIResponse(resp openaiResponse) (*domain.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainError("llm.chat", domain.ErrProviderError, "response contained no choices")
	}

	created := time.Unix(resp.Created, 0)
	if resp.Created == 0 {
		created = time.Now()
	}

	return &domain.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Message: domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Choices[0].Message.Content,
			Timestamp: created,
		},
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: created,
	}, nil
}
