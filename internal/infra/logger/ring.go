package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event is one captured log record, kept for the debug log endpoint.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter narrows a ring query. Zero-value fields match everything.
type Filter struct {
	Level   string // exact level name, case-insensitive
	Message string // substring match on the message
}

// Ring is a bounded in-memory store of recent log events, newest first.
// It backs the debug log endpoint and is safe for concurrent use.
type Ring struct {
	mu     sync.Mutex
	cap    int
	events []Event
}

// NewRing creates a ring that retains at most capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring{cap: capacity}
}

func (r *Ring) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]Event{e}, r.events...)
	if len(r.events) > r.cap {
		r.events = r.events[:r.cap]
	}
}

// Events returns the captured events matching the filter, newest first.
func (r *Ring) Events(f Filter) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if f.Level != "" && !strings.EqualFold(f.Level, e.Level) {
			continue
		}
		if f.Message != "" && !strings.Contains(e.Message, f.Message) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len reports the number of retained events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear discards all retained events.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Export renders all retained events as indented JSON.
func (r *Ring) Export() ([]byte, error) {
	return json.MarshalIndent(r.Events(Filter{}), "", "  ")
}

// ringHandler tees records into a Ring while delegating to the inner handler.
type ringHandler struct {
	inner slog.Handler
	ring  *Ring
	attrs []slog.Attr
}

// NewRingHandler wraps inner so every record the inner handler accepts is
// also retained in ring.
func NewRingHandler(inner slog.Handler, ring *Ring) slog.Handler {
	return &ringHandler{inner: inner, ring: ring}
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ringHandler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.ring.add(Event{
		Timestamp: rec.Time,
		Level:     rec.Level.String(),
		Message:   rec.Message,
		Attrs:     attrs,
	})
	return h.inner.Handle(ctx, rec)
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ringHandler{inner: h.inner.WithAttrs(attrs), ring: h.ring, attrs: merged}
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened in the ring view; the inner handler keeps them.
	return &ringHandler{inner: h.inner.WithGroup(name), ring: h.ring, attrs: h.attrs}
}
