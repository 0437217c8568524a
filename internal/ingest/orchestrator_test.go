package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/category"
	"github.com/Adda-Baaj/khobor-digest/internal/crawler"
	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/publishers"
	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type memSink struct {
	mu   sync.Mutex
	rows map[string][]map[string]any
	fail func(table string, row map[string]any) error
}

func newMemSink() *memSink {
	return &memSink{rows: make(map[string][]map[string]any)}
}

func (m *memSink) Insert(_ context.Context, table string, row map[string]any) error {
	if m.fail != nil {
		if err := m.fail(table, row); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] = append(m.rows[table], row)
	return nil
}

func (m *memSink) Select(_ context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, row := range m.rows[table] {
		if len(out) >= limit {
			break
		}
		projected := make(map[string]any, len(columns))
		for _, c := range columns {
			projected[c] = row[c]
		}
		out = append(out, projected)
	}
	return out, nil
}

func (m *memSink) count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

type stubBuilder struct {
	items     []domain.NewsItem
	err       error
	calls     atomic.Int32
	lastQuery string
	lastCount int
}

func (b *stubBuilder) Build(_ context.Context, query string, count int) ([]domain.NewsItem, error) {
	b.calls.Add(1)
	b.lastQuery = query
	b.lastCount = count
	return b.items, b.err
}

type fakeSearcher struct {
	results []domain.SearchResult
}

func (fakeSearcher) ID() string { return "fake" }

func (s fakeSearcher) Search(_ context.Context, _ string, count int) ([]domain.SearchResult, error) {
	return s.results[:min(count, len(s.results))], nil
}

type fakeExtractor map[string]domain.ExtractedArticle

func (f fakeExtractor) Extract(_ context.Context, pageURL string) domain.ExtractedArticle {
	return f[pageURL]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishers.SummaryEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, evt publishers.SummaryEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

func summarizeWith(fn func(content string) (summarizer.Result, error)) summarizer.Func {
	return func(_ context.Context, _ string, content string) (summarizer.Result, error) {
		return fn(content)
	}
}

func relevantSummary(content string) (summarizer.Result, error) {
	return summarizer.Result{Text: "summary of " + content, Relevant: true}, nil
}

func newRouter(t *testing.T, s category.Summarizer) *category.Router {
	t.Helper()
	r, err := category.NewRouter([]category.Profile{
		{Name: "sports", Query: "cricket world cup", Summarizer: s},
		{Name: "technology", Summarizer: s},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func twoItems() []domain.NewsItem {
	return []domain.NewsItem{
		{Link: "https://a.example.com/1", Title: "One", Content: "first body"},
		{Link: "https://a.example.com/2", Title: "Two", Content: "second body"},
	}
}

func TestIngestEndToEnd(t *testing.T) {
	searcher := fakeSearcher{results: []domain.SearchResult{
		{Link: "https://a.example.com/1", Title: "One"},
		{Link: "https://a.example.com/2", Title: "Two"},
		{Link: "https://a.example.com/3", Title: "Three"},
	}}
	extractor := fakeExtractor{
		"https://a.example.com/1": {BodyText: "first body"},
		"https://a.example.com/2": {},
		"https://a.example.com/3": {BodyText: "third body"},
	}
	builder := crawler.NewBuilder(searcher, extractor, crawler.Config{Workers: 2}, nil)

	var calls atomic.Int32
	sum := summarizeWith(func(content string) (summarizer.Result, error) {
		calls.Add(1)
		return relevantSummary(content)
	})
	sink := newMemSink()
	orch := New(newRouter(t, sum), builder, sink, Config{Workers: 2}, nil, WithClock(fixedClock))

	report, err := orch.Ingest(context.Background(), "Technology", "ai chips", 3)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if got := sink.count("technology_articles"); got != 2 {
		t.Errorf("article inserts = %d, want 2", got)
	}
	if got := sink.count("technology_summary"); got != 2 {
		t.Errorf("summary inserts = %d, want 2", got)
	}
	if calls.Load() != 2 {
		t.Errorf("summarizer calls = %d, want 2", calls.Load())
	}
	if len(report.Items) != 2 {
		t.Fatalf("report items = %d, want 2", len(report.Items))
	}
	if report.Items[0].Link != "https://a.example.com/1" || report.Items[1].Link != "https://a.example.com/3" {
		t.Errorf("report order = %s, %s", report.Items[0].Link, report.Items[1].Link)
	}
	if report.Category != "technology" || report.Topic != "ai chips" {
		t.Errorf("report header = %q / %q", report.Category, report.Topic)
	}
	if report.SummariesStored() != 2 || report.Failures() != 0 {
		t.Errorf("counts: summaries=%d failures=%d", report.SummariesStored(), report.Failures())
	}

	row := sink.rows["technology_summary"][0]
	if row["date"] != "2024-05-01" || row["news_url"] == "" || row["news_title"] == "" {
		t.Errorf("unexpected summary row: %v", row)
	}
}

func TestIngestFailureIsolation(t *testing.T) {
	sink := newMemSink()
	sink.fail = func(table string, row map[string]any) error {
		if table == "sports_articles" && row["news_url"] == "https://a.example.com/1" {
			return errors.New("disk full")
		}
		return nil
	}
	builder := &stubBuilder{items: twoItems()}
	orch := New(newRouter(t, summarizeWith(relevantSummary)), builder, sink, Config{}, nil, WithClock(fixedClock))

	report, err := orch.Ingest(context.Background(), "sports", "", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(report.Items) != 2 {
		t.Fatalf("report items = %d", len(report.Items))
	}

	first, second := report.Items[0], report.Items[1]
	if first.ArticleStored || !first.Failed(ErrPersistence) {
		t.Errorf("first item should record a persistence failure: %+v", first)
	}
	if !first.SummaryStored {
		t.Errorf("summary of first item should still be stored: %+v", first)
	}
	if !second.ArticleStored || !second.SummaryStored || len(second.Errors) != 0 {
		t.Errorf("second item should succeed: %+v", second)
	}
	if sink.count("sports_articles") != 1 {
		t.Errorf("article rows = %d, want 1", sink.count("sports_articles"))
	}
}

func TestIngestSentinelSuppressesSummaryOnly(t *testing.T) {
	sum := summarizeWith(func(content string) (summarizer.Result, error) {
		if strings.HasPrefix(content, "second") {
			return summarizer.ParseLegacy("This story is *Not Relevant*"), nil
		}
		return relevantSummary(content)
	})
	sink := newMemSink()
	orch := New(newRouter(t, sum), &stubBuilder{items: twoItems()}, sink, Config{}, nil)

	report, err := orch.Ingest(context.Background(), "sports", "match", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if sink.count("sports_articles") != 2 {
		t.Errorf("article rows = %d, want 2", sink.count("sports_articles"))
	}
	if sink.count("sports_summary") != 1 {
		t.Errorf("summary rows = %d, want 1", sink.count("sports_summary"))
	}
	if report.Irrelevant() != 1 {
		t.Errorf("irrelevant = %d, want 1", report.Irrelevant())
	}
	if item := report.Items[1]; !item.Summarized || item.Relevant || item.SummaryStored {
		t.Errorf("unexpected irrelevant item report: %+v", item)
	}
}

func TestIngestUnknownCategoryDoesNotSearch(t *testing.T) {
	builder := &stubBuilder{items: twoItems()}
	orch := New(newRouter(t, summarizeWith(relevantSummary)), builder, newMemSink(), Config{}, nil)

	report, err := orch.Ingest(context.Background(), "crypto", "bitcoin", 5)
	if !errors.Is(err, category.ErrUnknownCategory) {
		t.Fatalf("expected unknown category error, got %v", err)
	}
	if builder.calls.Load() != 0 {
		t.Errorf("builder called %d times", builder.calls.Load())
	}
	if report.Err == "" {
		t.Error("report should carry the error")
	}
}

func TestIngestSearchFailurePropagates(t *testing.T) {
	builder := &stubBuilder{err: errors.New("blocked")}
	orch := New(newRouter(t, summarizeWith(relevantSummary)), builder, newMemSink(), Config{}, nil)

	if _, err := orch.Ingest(context.Background(), "sports", "x", 5); err == nil {
		t.Fatal("expected build error")
	}
}

func TestIngestDefaultsTopicAndCount(t *testing.T) {
	builder := &stubBuilder{}
	orch := New(newRouter(t, summarizeWith(relevantSummary)), builder, newMemSink(), Config{}, nil)

	report, err := orch.Ingest(context.Background(), "sports", "  ", 0)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if builder.lastQuery != "cricket world cup" || report.Topic != "cricket world cup" {
		t.Errorf("query = %q, report topic = %q", builder.lastQuery, report.Topic)
	}
	if builder.lastCount != DefaultArticleCount {
		t.Errorf("count = %d", builder.lastCount)
	}
}

func TestIngestSummarizerFailure(t *testing.T) {
	sum := summarizeWith(func(content string) (summarizer.Result, error) {
		if strings.HasPrefix(content, "first") {
			return summarizer.Result{}, errors.New("quota exceeded")
		}
		return relevantSummary(content)
	})
	sink := newMemSink()
	orch := New(newRouter(t, sum), &stubBuilder{items: twoItems()}, sink, Config{}, nil)

	report, err := orch.Ingest(context.Background(), "sports", "x", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !report.Items[0].Failed(ErrSummarization) || report.Items[0].SummaryStored {
		t.Errorf("first item: %+v", report.Items[0])
	}
	if !report.Items[0].ArticleStored {
		t.Error("article should be stored before summarizing")
	}
	if sink.count("sports_summary") != 1 {
		t.Errorf("summary rows = %d, want 1", sink.count("sports_summary"))
	}
}

func TestIngestRecoversItemPanic(t *testing.T) {
	sum := summarizeWith(func(content string) (summarizer.Result, error) {
		if strings.HasPrefix(content, "first") {
			panic("boom")
		}
		return relevantSummary(content)
	})
	orch := New(newRouter(t, sum), &stubBuilder{items: twoItems()}, newMemSink(), Config{}, nil)

	report, err := orch.Ingest(context.Background(), "sports", "x", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(report.Items[0].Errors) != 1 || !strings.Contains(report.Items[0].Errors[0], "boom") {
		t.Errorf("panic not recorded: %+v", report.Items[0])
	}
	if !report.Items[1].SummaryStored {
		t.Errorf("second item should still be processed: %+v", report.Items[1])
	}
}

func TestIngestPublishesStoredSummaries(t *testing.T) {
	sum := summarizeWith(func(content string) (summarizer.Result, error) {
		if strings.HasPrefix(content, "second") {
			return summarizer.Result{Text: "NOT RELEVANT"}, nil
		}
		return relevantSummary(content)
	})
	notifier := &recordingNotifier{err: errors.New("queue down")}
	orch := New(newRouter(t, sum), &stubBuilder{items: twoItems()}, newMemSink(), Config{}, nil,
		WithNotifier(notifier), WithClock(fixedClock))

	ctx := WithTaskID(context.Background(), "task-1")
	report, err := orch.Ingest(ctx, "sports", "x", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.events))
	}
	evt := notifier.events[0]
	if evt.TaskID != "task-1" || evt.Category != "sports" || evt.URL != "https://a.example.com/1" || evt.Date != "2024-05-01" {
		t.Errorf("unexpected event: %+v", evt)
	}
	if report.Failures() != 0 {
		t.Errorf("publish errors must not be recorded as failures: %+v", report.Items)
	}
}

func TestIngestCancelledContextSkipsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newMemSink()
	orch := New(newRouter(t, summarizeWith(relevantSummary)), &stubBuilder{items: twoItems()}, sink, Config{}, nil)
	report, err := orch.Ingest(ctx, "sports", "x", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if sink.count("sports_articles") != 0 {
		t.Errorf("no items should be processed after cancel")
	}
	if report.Failures() != 2 {
		t.Errorf("failures = %d, want 2", report.Failures())
	}
}

func TestIngestWithoutPublishersIsNotPublished(t *testing.T) {
	orch := New(newRouter(t, summarizeWith(relevantSummary)), &stubBuilder{items: twoItems()}, newMemSink(), Config{}, nil,
		WithNotifier(publishers.NewDispatcher(nil, nil)))

	report, err := orch.Ingest(context.Background(), "sports", "x", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	for _, item := range report.Items {
		if !item.SummaryStored || item.Published {
			t.Errorf("stored summary with no publishers must not be marked published: %+v", item)
		}
	}
}
