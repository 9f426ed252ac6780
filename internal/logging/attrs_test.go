package logging

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs, attrs...)
	return h
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) attrKeys(i int) map[string]string {
	keys := make(map[string]string)
	for _, a := range h.attrs {
		keys[a.Key] = a.Value.String()
	}
	h.records[i].Attrs(func(a slog.Attr) bool {
		keys[a.Key] = a.Value.String()
		return true
	})
	return keys
}

func TestNewComponentLoggerTagsComponent(t *testing.T) {
	h := &captureHandler{}
	logger := NewComponentLogger(slog.New(h), "cachestore")
	logger.Info("hello")

	if len(h.records) != 1 {
		t.Fatalf("got %d records", len(h.records))
	}
	if h.attrKeys(0)[FieldComponent] != "cachestore" {
		t.Errorf("component attr missing: %v", h.attrKeys(0))
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "x")
	// Must not panic and must swallow output.
	logger.Info("discarded")
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	h := &captureHandler{}
	WarnWithContext(slog.New(h), "something odd", "odd_event")

	if len(h.records) != 1 {
		t.Fatalf("got %d records", len(h.records))
	}
	keys := h.attrKeys(0)
	if keys[FieldEventType] != "odd_event" {
		t.Errorf("event_type = %q", keys[FieldEventType])
	}
	for _, required := range []string{FieldErrorHint, FieldImpact} {
		if _, ok := keys[required]; !ok {
			t.Errorf("missing %s on warn record", required)
		}
	}
}

func TestWarnWithContextKeepsExplicitFields(t *testing.T) {
	h := &captureHandler{}
	WarnWithContext(slog.New(h), "msg", "fallback_event",
		String(FieldEventType, "explicit_event"),
		String(FieldImpact, "custom impact"),
	)

	keys := h.attrKeys(0)
	if keys[FieldEventType] != "explicit_event" {
		t.Errorf("event_type = %q", keys[FieldEventType])
	}
	if keys[FieldImpact] != "custom impact" {
		t.Errorf("impact = %q", keys[FieldImpact])
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger should report disabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
