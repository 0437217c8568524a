package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	g "github.com/serpapi/google-search-results-golang"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
)

// serpAPISearcher queries the SerpApi Google engine restricted to news.
type serpAPISearcher struct {
	apiKey string
	search func(params map[string]string, apiKey string) (map[string]any, error)
}

// NewSerpAPISearcher builds a Searcher backed by SerpApi.
func NewSerpAPISearcher(apiKey string) Searcher {
	return &serpAPISearcher{apiKey: apiKey, search: serpAPIGetJSON}
}

func serpAPIGetJSON(params map[string]string, apiKey string) (map[string]any, error) {
	search := g.NewGoogleSearch(params, apiKey)
	res, err := search.GetJSON()
	if err != nil {
		return nil, err
	}
	return map[string]any(res), nil
}

func (s *serpAPISearcher) ID() string {
	return SearcherSerpAPI
}

// Search runs one SerpApi request. The client library has no context support,
// so cancellation is only checked before the call.
func (s *serpAPISearcher) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if count <= 0 {
		return []domain.SearchResult{}, nil
	}
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, fmt.Errorf("serpapi api key is not set")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := map[string]string{
		"engine": "google",
		"q":      query,
		"tbm":    "nws",
		"gl":     "us",
		"hl":     "en",
		"num":    strconv.Itoa(count),
	}

	raw, err := s.search(params, s.apiKey)
	if err != nil {
		return nil, fmt.Errorf("serpapi search: %w", err)
	}

	items, _ := raw["news_results"].([]any)
	results := make([]domain.SearchResult, 0, min(count, len(items)))
	for _, item := range items {
		if len(results) >= count {
			break
		}
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		link := stringField(entry, "link")
		if link == "" {
			results = append(results, domain.SearchResult{Err: fmt.Errorf("%w: link", ErrSelectorMismatch)})
			continue
		}
		results = append(results, domain.SearchResult{
			Link:    link,
			Title:   stringField(entry, "title"),
			Snippet: stringField(entry, "snippet"),
			Date:    stringField(entry, "date"),
			Source:  sourceField(entry["source"]),
		})
	}

	return results, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

// sourceField handles both the plain string and the {name: ...} object shapes.
func sourceField(v any) string {
	switch src := v.(type) {
	case string:
		return strings.TrimSpace(src)
	case map[string]any:
		return stringField(src, "name")
	default:
		return ""
	}
}
