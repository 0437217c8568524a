package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adda-Baaj/khobor-digest/internal/category"
	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

func TestRetrieverSummarizesStoredArticles(t *testing.T) {
	sink := newMemSink()
	for _, body := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"} {
		_ = sink.Insert(context.Background(), "health_articles", map[string]any{"title": body, "content": body})
	}

	var prompt string
	sum := summarizer.Func(func(_ context.Context, cat, content string) (summarizer.Result, error) {
		if cat != "health" {
			t.Errorf("category = %q", cat)
		}
		prompt = content
		return summarizer.Result{Text: "digest", Relevant: true}, nil
	})
	router, err := category.NewRouter([]category.Profile{{Name: "health", Summarizer: sum}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	res, err := NewRetriever(router, sink, 0, nil).SummarizeStored(context.Background(), "health", "vaccines")
	if err != nil {
		t.Fatalf("SummarizeStored: %v", err)
	}
	if res.Text != "digest" {
		t.Errorf("result = %+v", res)
	}
	want := "Query: vaccines\n\nalpha beta gamma delta epsilon"
	if prompt != want {
		t.Errorf("prompt = %q, want %q", prompt, want)
	}
	if sink.count("health_summary") != 0 {
		t.Error("on-demand summaries must not be stored")
	}
}

func TestRetrieverNoArticles(t *testing.T) {
	router := newRouter(t, summarizeWith(relevantSummary))
	_, err := NewRetriever(router, newMemSink(), 5, nil).SummarizeStored(context.Background(), "sports", "q")
	if !errors.Is(err, ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
}

func TestRetrieverUnknownCategory(t *testing.T) {
	router := newRouter(t, summarizeWith(relevantSummary))
	_, err := NewRetriever(router, newMemSink(), 5, nil).SummarizeStored(context.Background(), "crypto", "q")
	if !errors.Is(err, category.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestColumnText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{" text ", "text"},
		{[]byte("bytes"), "bytes"},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := columnText(tt.in); got != tt.want {
			t.Errorf("columnText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !strings.HasPrefix(ErrNoArticles.Error(), "no relevant") {
		t.Error("unexpected ErrNoArticles text")
	}
}
