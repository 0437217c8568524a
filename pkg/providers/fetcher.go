package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

// Supported searcher ids.
const (
	SearcherGoogle        = "google"
	SearcherGoogleNewsRSS = "google-news-rss"
	SearcherSitemap       = "sitemap"
	SearcherSerpAPI       = "serpapi"
)

// ErrSelectorMismatch marks a search result block whose structure did not match the expected selectors.
var ErrSelectorMismatch = errors.New("search result selector mismatch")

// HTTPClient is the outbound client the searchers use.
type HTTPClient = httpclient.Client

// Searcher turns a topic into a bounded list of search result pointers.
type Searcher interface {
	ID() string
	Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error)
}

// SearcherRegistry resolves searchers by id.
type SearcherRegistry interface {
	SearcherFor(id string) (Searcher, error)
	IDs() []string
}

type searcherRegistry struct {
	searchers map[string]Searcher
	order     []string
	mu        sync.RWMutex
}

// NewSearcherRegistry builds a registry for the provided searcher implementations.
func NewSearcherRegistry(searchers ...Searcher) SearcherRegistry {
	reg := &searcherRegistry{
		searchers: make(map[string]Searcher, len(searchers)),
	}

	for _, s := range searchers {
		if s == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(s.ID()))
		if _, dup := reg.searchers[key]; !dup {
			reg.order = append(reg.order, key)
		}
		reg.searchers[key] = s
	}

	return reg
}

// SearcherFor selects the searcher registered under id.
func (r *searcherRegistry) SearcherFor(id string) (Searcher, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return nil, fmt.Errorf("searcher id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.searchers[key]; ok {
		return s, nil
	}

	return nil, fmt.Errorf("no searcher registered for %q", id)
}

// IDs lists registered searcher ids in registration order.
func (r *searcherRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultHTTPClient returns a tuned client for searchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// Options configures the default searcher set.
type Options struct {
	UserAgent  string
	SitemapURL string
	SerpAPIKey string
}

// DefaultSearcherRegistry wires up the known searchers. Searchers that need
// configuration are only registered when it is present.
func DefaultSearcherRegistry(client HTTPClient, opts Options) SearcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	searchers := []Searcher{
		NewGoogleSearcher(client, GoogleConfig{UserAgent: opts.UserAgent}),
		NewGoogleNewsRSSSearcher(client, GoogleNewsRSSConfig{UserAgent: opts.UserAgent}),
	}
	if strings.TrimSpace(opts.SitemapURL) != "" {
		searchers = append(searchers, NewSitemapSearcher(client, SitemapConfig{
			SourceURL: opts.SitemapURL,
			UserAgent: opts.UserAgent,
		}))
	}
	if strings.TrimSpace(opts.SerpAPIKey) != "" {
		searchers = append(searchers, NewSerpAPISearcher(opts.SerpAPIKey))
	}

	return NewSearcherRegistry(searchers...)
}

// fetchPage retrieves a page and fails on any non-200 status.
func fetchPage(ctx context.Context, client HTTPClient, url, searcherID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page: %w", searcherID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d body: %s", searcherID, resp.StatusCode(), responseSnippet(body))
	}

	return body, nil
}

// capResults truncates results to at most count entries.
func capResults(results []domain.SearchResult, count int) []domain.SearchResult {
	if count <= 0 {
		return []domain.SearchResult{}
	}
	if len(results) > count {
		return results[:count]
	}
	return results
}
