// Package mcptools exposes the orchestrator as MCP tools over stdio so
// IDE and agent hosts can call selection, planning, and full orchestration.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"maestro/internal/domain"
)

// Orchestrator runs the full analyze-select-narrate pipeline.
type Orchestrator interface {
	Orchestrate(ctx context.Context, userPrompt string) *domain.OrchestrationResult
}

// SelectionEngine exposes the two analysis calls individually.
type SelectionEngine interface {
	SelectAgent(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.SelectionResult
	PlanCoordination(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.CoordinationPlan
}

// Server wraps an MCP stdio server around the orchestrator.
type Server struct {
	mcpSrv  *server.MCPServer
	orch    Orchestrator
	engine  SelectionEngine
	catalog domain.CatalogProvider
	logger  *slog.Logger
}

// NewServer creates the MCP tool server and registers the three tools.
func NewServer(orch Orchestrator, engine SelectionEngine, catalog domain.CatalogProvider, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		orch:    orch,
		engine:  engine,
		catalog: catalog,
		logger:  logger,
	}

	s.mcpSrv = server.NewMCPServer("maestro", version,
		server.WithToolCapabilities(false),
	)

	s.mcpSrv.AddTool(mcp.NewTool("select_agent",
		mcp.WithDescription("Analyze a user request and select the best specialized agent, with per-agent scores and reasoning."),
		mcp.WithString("user_prompt", mcp.Required(), mcp.Description("The user request to analyze.")),
	), s.handleSelectAgent)

	s.mcpSrv.AddTool(mcp.NewTool("plan_coordination",
		mcp.WithDescription("Determine whether a request needs multiple agents and produce an ordered coordination plan."),
		mcp.WithString("user_prompt", mcp.Required(), mcp.Description("The user request to analyze.")),
	), s.handlePlanCoordination)

	s.mcpSrv.AddTool(mcp.NewTool("orchestrate",
		mcp.WithDescription("Run the full orchestration pipeline: selection, the five-step timeline, and an actionable suggestion."),
		mcp.WithString("user_prompt", mcp.Required(), mcp.Description("The user request to orchestrate.")),
	), s.handleOrchestrate)

	return s
}

// ServeStdio serves MCP over stdin/stdout. Blocks until the stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpSrv)
}

func (s *Server) handleSelectAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("user_prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := s.engine.SelectAgent(ctx, prompt, s.listCatalog(ctx))
	return jsonResult(result)
}

func (s *Server) handlePlanCoordination(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("user_prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan := s.engine.PlanCoordination(ctx, prompt, s.listCatalog(ctx))
	return jsonResult(plan)
}

func (s *Server) handleOrchestrate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("user_prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.orch.Orchestrate(ctx, prompt))
}

// listCatalog degrades to empty on failure, matching the facade contract.
func (s *Server) listCatalog(ctx context.Context) []domain.AgentDescriptor {
	agents, err := s.catalog.ListPublicAgents(ctx)
	if err != nil {
		s.logger.Warn("catalog unavailable, serving tool call with empty catalog", "error", err)
		return nil
	}
	return agents
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
