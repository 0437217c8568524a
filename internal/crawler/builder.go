// Package crawler turns a search topic into a list of news items with extracted body text.
package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/internal/logger"
)

const defaultWorkers = 8

// Searcher finds candidate articles for a query.
type Searcher interface {
	ID() string
	Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error)
}

// Extractor pulls article fields out of a page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) domain.ExtractedArticle
}

// Config tunes the extraction pool.
type Config struct {
	Workers      int
	RequestDelay time.Duration
}

// Builder searches for a topic and extracts every hit concurrently.
type Builder struct {
	searcher  Searcher
	extractor Extractor
	cfg       Config
	log       logger.Logger
}

// NewBuilder creates a Builder. Workers defaults to 8 when unset.
func NewBuilder(searcher Searcher, extractor Extractor, cfg Config, log logger.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Builder{
		searcher:  searcher,
		extractor: extractor,
		cfg:       cfg,
		log:       logger.Ensure(log),
	}
}

// Build returns the news items for query in search ranking order. Results that
// failed to parse, have no link, or yield no body text are dropped, so the
// output is never longer than the search result list.
func (b *Builder) Build(ctx context.Context, query string, count int) ([]domain.NewsItem, error) {
	results, err := b.searcher.Search(ctx, query, count)
	if err != nil {
		return nil, fmt.Errorf("search %q via %s: %w", query, b.searcher.ID(), err)
	}

	b.log.InfoObj("search completed", "search_done", map[string]any{
		"searcher": b.searcher.ID(),
		"query":    query,
		"results":  len(results),
	})

	extracted := b.extractAll(ctx, results)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract results for %q: %w", query, err)
	}

	items := make([]domain.NewsItem, 0, len(results))
	for idx, res := range results {
		art := extracted[idx]
		if res.Err != nil || strings.TrimSpace(res.Link) == "" || !art.HasBody() {
			continue
		}
		items = append(items, domain.NewsItem{
			Link:    res.Link,
			Title:   res.Title,
			Content: art.BodyText,
		})
	}

	b.log.InfoObj("news list built", "news_list_built", map[string]any{
		"query":   query,
		"results": len(results),
		"items":   len(items),
	})

	return items, nil
}

// extractAll runs the extractor over results on a bounded pool. Each worker
// writes into the slot of the result it handled, keeping ranking order.
func (b *Builder) extractAll(ctx context.Context, results []domain.SearchResult) []domain.ExtractedArticle {
	out := make([]domain.ExtractedArticle, len(results))
	if len(results) == 0 {
		return out
	}

	workerCount := min(len(results), b.cfg.Workers)

	var limiter <-chan time.Time
	if b.cfg.RequestDelay > 0 {
		ticker := time.NewTicker(b.cfg.RequestDelay)
		limiter = ticker.C
		defer ticker.Stop()
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for workerID := range workerCount {
		wg.Add(1)
		go b.extractWorker(ctx, results, limiter, jobCh, out, &wg, workerID)
	}

	for idx := range results {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)

	wg.Wait()

	return out
}

func (b *Builder) extractWorker(
	ctx context.Context,
	results []domain.SearchResult,
	limiter <-chan time.Time,
	jobCh <-chan int,
	out []domain.ExtractedArticle,
	wg *sync.WaitGroup,
	workerID int,
) {
	defer wg.Done()

	for idx := range jobCh {
		if ctx.Err() != nil {
			continue
		}

		res := results[idx]
		if res.Err != nil {
			b.log.WarnObj("skipping malformed search result", "search_result_skipped", map[string]any{
				"worker_id": workerID,
				"position":  idx,
				"error":     res.Err.Error(),
			})
			continue
		}
		if strings.TrimSpace(res.Link) == "" {
			continue
		}

		if limiter != nil {
			select {
			case <-ctx.Done():
				continue
			case <-limiter:
			}
		}

		b.log.DebugObj("extracting article", "extract_start", map[string]any{
			"worker_id": workerID,
			"url":       res.Link,
		})
		out[idx] = b.extractor.Extract(ctx, res.Link)
	}
}
