package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"maestro/internal/domain"
	"maestro/internal/infra/config"
	"maestro/internal/infra/logger"
)

type fakeOrchestrator struct {
	result *domain.OrchestrationResult
}

func (f *fakeOrchestrator) Orchestrate(ctx context.Context, userPrompt string) *domain.OrchestrationResult {
	r := *f.result
	r.UserPrompt = userPrompt
	return &r
}

type fakeEngine struct {
	selection domain.SelectionResult
	plan      domain.CoordinationPlan
	catalog   []domain.AgentDescriptor
}

func (f *fakeEngine) SelectAgent(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.SelectionResult {
	f.catalog = catalog
	return f.selection
}

func (f *fakeEngine) PlanCoordination(ctx context.Context, userPrompt string, catalog []domain.AgentDescriptor) domain.CoordinationPlan {
	f.catalog = catalog
	return f.plan
}

type fakeCatalog struct {
	agents []domain.AgentDescriptor
	err    error
}

func (f *fakeCatalog) ListPublicAgents(ctx context.Context) ([]domain.AgentDescriptor, error) {
	return f.agents, f.err
}

func testResult() *domain.OrchestrationResult {
	steps := make([]domain.OrchestrationStep, 5)
	for i := range steps {
		steps[i] = domain.OrchestrationStep{Step: i + 1, Action: domain.StepAnalyzing, Timestamp: time.Now()}
	}
	return &domain.OrchestrationResult{
		RequestID: "01TESTREQUESTID",
		Selection: domain.SelectionResult{Reasoning: "test", Confidence: 80},
		Steps:     steps,
		Suggestion: domain.Suggestion{
			Action:    domain.ActionDirectResponse,
			Reasoning: "I can help you directly with this request.",
		},
		Timestamp: time.Now(),
	}
}

func newTestServer(t *testing.T, catalog *fakeCatalog, ring *logger.Ring, cfg config.GatewayConfig) (*Server, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{
		selection: domain.SelectionResult{Reasoning: "selected", Confidence: 70},
		plan:      domain.CoordinationPlan{CoordinationStrategy: domain.StrategySequential, Reasoning: "planned"},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(&fakeOrchestrator{result: testResult()}, engine, catalog, ring, cfg, log)
	return s, engine
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestOrchestrateEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/orchestrate", `{"user_prompt":"book a court"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result domain.OrchestrationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.UserPrompt != "book a court" {
		t.Errorf("user prompt = %q", result.UserPrompt)
	}
	if len(result.Steps) != 5 {
		t.Errorf("steps = %d, want 5", len(result.Steps))
	}
}

func TestOrchestrateRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for name, body := range map[string]string{
		"missing prompt": `{}`,
		"empty prompt":   `{"user_prompt":""}`,
		"invalid json":   `{user_prompt`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/orchestrate", body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestOrchestrateNeverFailsOnCatalogError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("backend down")}
	s, _ := newTestServer(t, catalog, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/orchestrate", `{"user_prompt":"x"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 under catalog failure", resp.StatusCode)
	}
}

func TestSelectEndpoint(t *testing.T) {
	agents := []domain.AgentDescriptor{{ID: "a1", Name: "Agent", Slug: "agent"}}
	s, engine := newTestServer(t, &fakeCatalog{agents: agents}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/select", `{"user_prompt":"x"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sel domain.SelectionResult
	if err := json.NewDecoder(resp.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel.Reasoning != "selected" {
		t.Errorf("reasoning = %q", sel.Reasoning)
	}
	if len(engine.catalog) != 1 || engine.catalog[0].ID != "a1" {
		t.Errorf("engine saw catalog %v", engine.catalog)
	}
}

func TestSelectDegradesOnCatalogError(t *testing.T) {
	s, engine := newTestServer(t, &fakeCatalog{err: errors.New("down")}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/select", `{"user_prompt":"x"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if engine.catalog != nil {
		t.Errorf("engine saw catalog %v, want nil", engine.catalog)
	}
}

func TestPlanEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/plan", `{"user_prompt":"x"}`)
	defer resp.Body.Close()

	var plan domain.CoordinationPlan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plan.Reasoning != "planned" {
		t.Errorf("reasoning = %q", plan.Reasoning)
	}
}

func TestAgentsEndpoint(t *testing.T) {
	agents := []domain.AgentDescriptor{{ID: "a1", Name: "Agent", Slug: "agent"}}
	s, _ := newTestServer(t, &fakeCatalog{agents: agents}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/agents")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Agents []domain.AgentDescriptor `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Agents) != 1 || out.Agents[0].Slug != "agent" {
		t.Errorf("agents = %v", out.Agents)
	}
}

func TestAgentsEndpointUnavailable(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{err: errors.New("down")}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/agents")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestLogsEndpoint(t *testing.T) {
	ring := logger.NewRing(10)
	log := slog.New(logger.NewRingHandler(slog.NewTextHandler(io.Discard, nil), ring))
	log.Info("orchestration completed", "request_id", "r1")
	log.Warn("catalog unavailable")

	s, _ := newTestServer(t, &fakeCatalog{}, ring, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?level=WARN")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Events []logger.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Events) != 1 || out.Events[0].Message != "catalog unavailable" {
		t.Errorf("events = %v", out.Events)
	}
}

func TestLogsEndpointDisabled(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"ok"`) {
		t.Errorf("body = %s", body)
	}
}

func TestRateLimiting(t *testing.T) {
	cfg := config.GatewayConfig{RatePerSecond: 1, RateBurst: 2}
	s, _ := newTestServer(t, &fakeCatalog{}, nil, cfg)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("expected at least one 429 after burst exhausted")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/orchestrate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestServer(t, &fakeCatalog{}, nil, config.GatewayConfig{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for s.BoundAddr() == "" {
		select {
		case <-deadline:
			t.Fatal("server did not bind")
		case <-time.After(10 * time.Millisecond):
		}
	}

	resp, err := http.Get("http://" + s.BoundAddr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
