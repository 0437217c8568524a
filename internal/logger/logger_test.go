package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestFromZapWritesEventAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With(map[string]any{"category": "sports"})

	log.WarnObj("article insert failed", "persist_error", map[string]any{"url": "https://example.com/a"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["event"] != "persist_error" {
		t.Errorf("event = %v", ctx["event"])
	}
	if ctx["url"] != "https://example.com/a" {
		t.Errorf("url = %v", ctx["url"])
	}
	if ctx["category"] != "sports" {
		t.Errorf("category = %v", ctx["category"])
	}
}

func TestEnsure(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatal("expected NopLogger for nil input")
	}
}
