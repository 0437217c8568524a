package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/khobor-digest/internal/logger"
	"github.com/Adda-Baaj/khobor-digest/pkg/storage"
	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

const defaultRetrievalLimit = 5

// ErrNoArticles is returned when a category has no stored articles to summarize.
var ErrNoArticles = errors.New("no relevant articles found")

// Retriever answers on-demand queries from the articles already stored for a category.
type Retriever struct {
	router Resolver
	reader storage.Reader
	limit  int
	log    logger.Logger
}

// NewRetriever creates a Retriever reading at most limit rows per query.
func NewRetriever(router Resolver, reader storage.Reader, limit int, log logger.Logger) *Retriever {
	if limit <= 0 {
		limit = defaultRetrievalLimit
	}
	return &Retriever{router: router, reader: reader, limit: limit, log: logger.Ensure(log)}
}

// SummarizeStored reads the oldest stored articles of a category, prefixes
// their joined content with the query and summarizes it with the category
// summarizer. Nothing is written back.
func (r *Retriever) SummarizeStored(ctx context.Context, categoryName, query string) (summarizer.Result, error) {
	profile, err := r.router.Resolve(categoryName)
	if err != nil {
		return summarizer.Result{}, err
	}

	rows, err := r.reader.Select(ctx, profile.ArticlesTable, []string{"content", "title"}, r.limit)
	if err != nil {
		return summarizer.Result{}, fmt.Errorf("%w: read %s: %w", ErrPersistence, profile.ArticlesTable, err)
	}

	contents := make([]string, 0, len(rows))
	for _, row := range rows {
		if text := columnText(row["content"]); text != "" {
			contents = append(contents, text)
		}
	}
	if len(contents) == 0 {
		return summarizer.Result{}, ErrNoArticles
	}

	prompt := "Query: " + query + "\n\n" + strings.Join(contents, " ")
	res, err := profile.Summarizer.Summarize(ctx, profile.Name, prompt)
	if err != nil {
		return summarizer.Result{}, fmt.Errorf("%w: %w", ErrSummarization, err)
	}

	r.log.InfoObj("stored articles summarized", "rag_done", map[string]any{
		"category": profile.Name,
		"query":    query,
		"articles": len(contents),
		"relevant": res.Relevant,
	})
	return res, nil
}

func columnText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
