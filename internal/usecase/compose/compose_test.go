package compose

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"maestro/internal/domain"
)

type stubGenerator struct {
	raw     json.RawMessage
	err     error
	lastReq domain.GenerationRequest
}

func (s *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (json.RawMessage, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateTitle(t *testing.T) {
	gen := &stubGenerator{raw: json.RawMessage(`{"title":"Solar panel efficiency in northern climates"}`)}
	c := New(gen, "test-model", quietLogger())

	title, err := c.GenerateTitle(context.Background(), "how efficient are solar panels in Norway")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Solar panel efficiency in northern climates" {
		t.Errorf("title = %q", title)
	}
	if gen.lastReq.Model != "test-model" {
		t.Errorf("model = %q", gen.lastReq.Model)
	}
	if !strings.Contains(gen.lastReq.UserTurn, "max 12 words") {
		t.Errorf("user turn missing length instruction: %q", gen.lastReq.UserTurn)
	}
}

func TestGenerateTitleTrimsWhitespace(t *testing.T) {
	gen := &stubGenerator{raw: json.RawMessage(`{"title":"  Trimmed title  "}`)}
	c := New(gen, "m", quietLogger())

	title, err := c.GenerateTitle(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Trimmed title" {
		t.Errorf("title = %q", title)
	}
}

func TestGenerateTitleErrors(t *testing.T) {
	t.Run("generation error", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("provider down")}
		c := New(gen, "m", quietLogger())
		if _, err := c.GenerateTitle(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("empty title", func(t *testing.T) {
		gen := &stubGenerator{raw: json.RawMessage(`{"title":"   "}`)}
		c := New(gen, "m", quietLogger())
		_, err := c.GenerateTitle(context.Background(), "x")
		if !errors.Is(err, domain.ErrGenerationFailed) {
			t.Fatalf("err = %v, want ErrGenerationFailed", err)
		}
	})
	t.Run("undecodable output", func(t *testing.T) {
		gen := &stubGenerator{raw: json.RawMessage(`not json`)}
		c := New(gen, "m", quietLogger())
		if _, err := c.GenerateTitle(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPlanSearchQueries(t *testing.T) {
	gen := &stubGenerator{raw: json.RawMessage(`{"queries":["History of solar panels","Efficiency benchmarks","Cold climate performance"]}`)}
	c := New(gen, "m", quietLogger())

	queries, err := c.PlanSearchQueries(context.Background(), "solar panels in Norway")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"History of solar panels", "Efficiency benchmarks", "Cold climate performance"}
	if !reflect.DeepEqual(queries, want) {
		t.Errorf("queries = %v", queries)
	}
	if !strings.Contains(gen.lastReq.UserTurn, "exactly 3 search queries") {
		t.Errorf("user turn = %q", gen.lastReq.UserTurn)
	}
}

func TestPlanSearchQueriesCountEnforced(t *testing.T) {
	for name, payload := range map[string]string{
		"too few":  `{"queries":["one","two"]}`,
		"too many": `{"queries":["a","b","c","d"]}`,
		"empty":    `{"queries":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := &stubGenerator{raw: json.RawMessage(payload)}
			c := New(gen, "m", quietLogger())
			_, err := c.PlanSearchQueries(context.Background(), "x")
			if !errors.Is(err, domain.ErrSchemaViolation) {
				t.Fatalf("err = %v, want ErrSchemaViolation", err)
			}
		})
	}
}

func TestPlanSearchQueriesGenerationError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("provider down")}
	c := New(gen, "m", quietLogger())
	if _, err := c.PlanSearchQueries(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
