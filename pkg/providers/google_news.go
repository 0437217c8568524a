package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

// SitemapConfig configures a Google News sitemap searcher.
type SitemapConfig struct {
	SourceURL string
	UserAgent string
}

// sitemapSearcher searches a publisher's Google News sitemap by title and keywords.
type sitemapSearcher struct {
	client HTTPClient
	cfg    SitemapConfig
	source string
}

// NewSitemapSearcher builds a Searcher over a Google News sitemap (or sitemap index).
func NewSitemapSearcher(client HTTPClient, cfg SitemapConfig) Searcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	source := cfg.SourceURL
	if u, err := url.Parse(cfg.SourceURL); err == nil && u.Host != "" {
		source = strings.TrimPrefix(u.Host, "www.")
	}
	return &sitemapSearcher{client: client, cfg: cfg, source: source}
}

func (s *sitemapSearcher) ID() string {
	return SearcherSitemap
}

// Search returns sitemap entries matching query, in sitemap order, up to count.
func (s *sitemapSearcher) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if count <= 0 {
		return []domain.SearchResult{}, nil
	}
	if strings.TrimSpace(s.cfg.SourceURL) == "" {
		return nil, fmt.Errorf("sitemap searcher source_url is empty")
	}

	headers := httpclient.BrowserHeaders(s.cfg.UserAgent)

	urls, err := s.fetchGoogleNewsURLs(ctx, s.cfg.SourceURL, headers, nil)
	if err != nil {
		return nil, err
	}

	return capResults(buildResultsFromSitemap(s.source, query, urls), count), nil
}

// fetchGoogleNewsURLs resolves the given sitemap URL into article entries, following sitemap indexes if necessary.
func (s *sitemapSearcher) fetchGoogleNewsURLs(ctx context.Context, sitemapURL string, headers map[string]string, visited map[string]struct{}) ([]googleNewsURL, error) {
	if visited == nil {
		visited = make(map[string]struct{})
	}
	if _, seen := visited[sitemapURL]; seen {
		return nil, nil
	}
	visited[sitemapURL] = struct{}{}

	raw, err := fetchPage(ctx, s.client, sitemapURL, SearcherSitemap, headers)
	if err != nil {
		return nil, err
	}

	urls, err := parseGoogleNewsSitemap(raw)
	if err != nil {
		return nil, fmt.Errorf("decode google news sitemap: %w", err)
	}
	if len(urls) > 0 {
		return urls, nil
	}

	indexURLs, err := parseSitemapIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode sitemap index: %w", err)
	}

	var all []googleNewsURL
	for _, indexURL := range indexURLs {
		nested, err := s.fetchGoogleNewsURLs(ctx, indexURL, headers, visited)
		if err != nil {
			return nil, err
		}
		all = append(all, nested...)
	}
	return all, nil
}
