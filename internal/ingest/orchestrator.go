// Package ingest drives the search, extract, summarize and store pipeline for a category.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/category"
	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/internal/logger"
	"github.com/Adda-Baaj/khobor-digest/pkg/publishers"
	"github.com/Adda-Baaj/khobor-digest/pkg/storage"
)

const (
	DefaultArticleCount = 10
	defaultWorkers      = 4
)

var (
	// ErrPersistence wraps storage failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrSummarization wraps summarizer failures.
	ErrSummarization = errors.New("summarization failure")
)

// Resolver maps a category name to its profile.
type Resolver interface {
	Resolve(name string) (category.Profile, error)
}

// NewsBuilder produces the news list for a topic.
type NewsBuilder interface {
	Build(ctx context.Context, query string, count int) ([]domain.NewsItem, error)
}

// Notifier is told about every stored summary.
type Notifier interface {
	Publish(ctx context.Context, evt publishers.SummaryEvent) error
}

// Config tunes the orchestrator.
type Config struct {
	Workers      int
	ArticleCount int
}

// Orchestrator runs ingestion passes. It is safe for concurrent use.
type Orchestrator struct {
	router   Resolver
	builder  NewsBuilder
	sink     storage.Sink
	notifier Notifier
	cfg      Config
	now      func() time.Time
	log      logger.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier publishes an event after each stored summary.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the time source used for record dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator.
func New(router Resolver, builder NewsBuilder, sink storage.Sink, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ArticleCount <= 0 {
		cfg.ArticleCount = DefaultArticleCount
	}
	o := &Orchestrator{
		router:  router,
		builder: builder,
		sink:    sink,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.Ensure(log),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ingest searches topic for categoryName, stores every article, and stores the
// summaries the summarizer considers relevant. Only an unknown category or a
// failed search is returned as an error; per-item failures land in the report.
// An empty topic falls back to the category's configured query.
func (o *Orchestrator) Ingest(ctx context.Context, categoryName, topic string, count int) (Report, error) {
	report := Report{Category: categoryName, Topic: topic, StartedAt: o.now()}
	finish := func(err error) (Report, error) {
		report.FinishedAt = o.now()
		if err != nil {
			report.Err = err.Error()
		}
		return report, err
	}

	profile, err := o.router.Resolve(categoryName)
	if err != nil {
		return finish(err)
	}
	report.Category = profile.Name
	if strings.TrimSpace(topic) == "" {
		topic = profile.Query
		report.Topic = topic
	}
	if count <= 0 {
		count = o.cfg.ArticleCount
	}

	log := o.log.With(map[string]any{"category": profile.Name, "topic": topic})
	log.InfoObj("ingestion started", "ingest_start", map[string]any{"count": count})

	items, err := o.builder.Build(ctx, topic, count)
	if err != nil {
		return finish(fmt.Errorf("build news list: %w", err))
	}

	report.Items = o.processAll(ctx, profile, items, log)

	log.InfoObj("ingestion finished", "ingest_done", map[string]any{
		"items":            len(report.Items),
		"articles_stored":  report.ArticlesStored(),
		"summaries_stored": report.SummariesStored(),
		"irrelevant":       report.Irrelevant(),
		"failures":         report.Failures(),
	})
	return finish(nil)
}

// processAll fans items out to a bounded pool. Each worker writes the slot of
// the item it handled, so the report keeps news list order.
func (o *Orchestrator) processAll(ctx context.Context, profile category.Profile, items []domain.NewsItem, log logger.Logger) []ItemReport {
	out := make([]ItemReport, len(items))
	for i, item := range items {
		out[i] = ItemReport{Link: item.Link, Title: item.Title}
	}
	if len(items) == 0 {
		return out
	}

	date := o.now().Format(time.DateOnly)
	jobCh := make(chan int)
	var wg sync.WaitGroup

	for range min(len(items), o.cfg.Workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				o.processSafely(ctx, profile, items[idx], date, &out[idx], log)
			}
		}()
	}

	for idx := range items {
		if ctx.Err() != nil {
			out[idx].fail(fmt.Errorf("not processed: %w", ctx.Err()))
			continue
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	return out
}

func (o *Orchestrator) processSafely(ctx context.Context, profile category.Profile, item domain.NewsItem, date string, rep *ItemReport, log logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			rep.fail(fmt.Errorf("panic while processing item: %v", r))
			log.ErrorObj("item processing panicked", "ingest_item_panic", map[string]any{
				"url":   item.Link,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()
	o.process(ctx, profile, item, date, rep, log)
}

func (o *Orchestrator) process(ctx context.Context, profile category.Profile, item domain.NewsItem, date string, rep *ItemReport, log logger.Logger) {
	article := domain.ArticleRecord{Date: date, Title: item.Title, Content: item.Content, NewsURL: item.Link}
	if err := o.sink.Insert(ctx, profile.ArticlesTable, article.Row()); err != nil {
		rep.fail(fmt.Errorf("%w: insert article into %s: %w", ErrPersistence, profile.ArticlesTable, err))
		log.WarnObj("article insert failed", "article_insert_error", map[string]any{
			"url":   item.Link,
			"table": profile.ArticlesTable,
			"error": err.Error(),
		})
	} else {
		rep.ArticleStored = true
	}

	res, err := profile.Summarizer.Summarize(ctx, profile.Name, item.Content)
	if err != nil {
		rep.fail(fmt.Errorf("%w: %w", ErrSummarization, err))
		log.WarnObj("summarization failed", "summarize_error", map[string]any{
			"url":   item.Link,
			"error": err.Error(),
		})
		return
	}
	rep.Summarized = true
	rep.Relevant = res.Relevant
	if !res.Relevant {
		log.DebugObj("summary marked not relevant", "summary_irrelevant", map[string]any{"url": item.Link})
		return
	}

	summary := domain.SummaryRecord{Date: date, Summary: res.Text, NewsTitle: item.Title, NewsURL: item.Link}
	if err := o.sink.Insert(ctx, profile.SummaryTable, summary.Row()); err != nil {
		rep.fail(fmt.Errorf("%w: insert summary into %s: %w", ErrPersistence, profile.SummaryTable, err))
		log.WarnObj("summary insert failed", "summary_insert_error", map[string]any{
			"url":   item.Link,
			"table": profile.SummaryTable,
			"error": err.Error(),
		})
		return
	}
	rep.SummaryStored = true

	if !o.hasPublishers() {
		return
	}
	evt := publishers.SummaryEvent{
		TaskID:   TaskIDFromContext(ctx),
		Category: profile.Name,
		Title:    item.Title,
		URL:      item.Link,
		Summary:  res.Text,
		Date:     date,
	}
	if err := o.notifier.Publish(ctx, evt); err != nil {
		log.WarnObj("summary event not delivered", "summary_publish_error", map[string]any{
			"url":   item.Link,
			"error": err.Error(),
		})
		return
	}
	rep.Published = true
}

// hasPublishers reports whether a notifier is set and, when it can tell, has
// at least one destination attached.
func (o *Orchestrator) hasPublishers() bool {
	if o.notifier == nil {
		return false
	}
	if counter, ok := o.notifier.(interface{ Len() int }); ok {
		return counter.Len() > 0
	}
	return true
}
