// Package gateway exposes the orchestrator over HTTP and WebSocket.
// Orchestration endpoints follow the fail-open contract: an upstream
// failure degrades inside the usecase layer, so they never answer 500
// for operational errors.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
	"maestro/internal/infra/logger"
	"maestro/internal/infra/middleware"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Orchestrator runs the full analyze-select-narrate pipeline.
type Orchestrator interface {
	Orchestrate(ctx context.Context, userPrompt string) *domain.OrchestrationResult
}

// SelectionEngine exposes the two analysis calls individually.
type SelectionEngine interface {
	SelectAgent(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.SelectionResult
	PlanCoordination(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.CoordinationPlan
}

// Server is the HTTP gateway in front of the orchestrator.
type Server struct {
	orch    Orchestrator
	engine  SelectionEngine
	catalog domain.CatalogProvider
	ring    *logger.Ring // nil disables /api/logs
	logger  *slog.Logger

	addr       string
	reqTimeout time.Duration
	httpSrv    *http.Server
	boundAddr  string
	ratePerS   float64
	rateBurst  int
}

// NewServer creates a gateway server. ring may be nil.
func NewServer(orch Orchestrator, engine SelectionEngine, catalog domain.CatalogProvider, ring *logger.Ring, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		orch:       orch,
		engine:     engine,
		catalog:    catalog,
		ring:       ring,
		logger:     logger,
		addr:       cfg.Addr,
		reqTimeout: 30 * time.Second,
		ratePerS:   cfg.RatePerSecond,
		rateBurst:  cfg.RateBurst,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orchestrate", s.handleOrchestrate)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/plan", s.handlePlan)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /ws/orchestrate", s.handleWSOrchestrate)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	var h http.Handler = mux
	if s.ratePerS > 0 {
		h = middleware.RateLimit(s.ratePerS, s.rateBurst)(h)
	}
	return middleware.SecurityHeaders(h)
}

// Start begins serving. Blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// BoundAddr returns the listener address after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

type promptRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// readPrompt decodes the request body and rejects blank prompts.
func (s *Server) readPrompt(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req promptRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	if req.UserPrompt == "" {
		s.writeError(w, http.StatusBadRequest, "user_prompt is required")
		return "", false
	}
	return req.UserPrompt, true
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.readPrompt(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.reqTimeout)
	defer cancel()

	result := s.orch.Orchestrate(ctx, prompt)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.readPrompt(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.reqTimeout)
	defer cancel()

	catalog := s.listCatalog(ctx)
	s.writeJSON(w, http.StatusOK, s.engine.SelectAgent(ctx, prompt, catalog))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.readPrompt(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.reqTimeout)
	defer cancel()

	catalog := s.listCatalog(ctx)
	s.writeJSON(w, http.StatusOK, s.engine.PlanCoordination(ctx, prompt, catalog))
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.catalog.ListPublicAgents(r.Context())
	if err != nil {
		s.logger.Error("agent listing failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "agent catalog unavailable")
		return
	}
	if agents == nil {
		agents = []domain.AgentDescriptor{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.ring == nil {
		s.writeError(w, http.StatusNotFound, "log buffer disabled")
		return
	}
	events := s.ring.Events(logger.Filter{
		Level:   r.URL.Query().Get("level"),
		Message: r.URL.Query().Get("q"),
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listCatalog fetches the catalog for the single-call endpoints, degrading
// to empty on failure like the facade does.
func (s *Server) listCatalog(ctx context.Context) []domain.AgentDescriptor {
	agents, err := s.catalog.ListPublicAgents(ctx)
	if err != nil {
		s.logger.Warn("catalog unavailable, proceeding with empty catalog", "error", err)
		return nil
	}
	return agents
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

