package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

const defaultGoogleNewsRSSURL = "https://news.google.com/rss/search"

// GoogleNewsRSSConfig configures the Google News RSS searcher.
type GoogleNewsRSSConfig struct {
	Endpoint  string
	UserAgent string
}

// googleNewsRSSSearcher reads the Google News RSS search feed.
type googleNewsRSSSearcher struct {
	client HTTPClient
	cfg    GoogleNewsRSSConfig
}

// NewGoogleNewsRSSSearcher builds a Searcher backed by the Google News RSS search feed.
func NewGoogleNewsRSSSearcher(client HTTPClient, cfg GoogleNewsRSSConfig) Searcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultGoogleNewsRSSURL
	}
	return &googleNewsRSSSearcher{client: client, cfg: cfg}
}

func (s *googleNewsRSSSearcher) ID() string {
	return SearcherGoogleNewsRSS
}

func (s *googleNewsRSSSearcher) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if count <= 0 {
		return []domain.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	body, err := fetchPage(ctx, s.client, s.cfg.Endpoint+"?"+params.Encode(), SearcherGoogleNewsRSS, httpclient.BrowserHeaders(s.cfg.UserAgent))
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse google news rss: %w", err)
	}

	results := make([]domain.SearchResult, 0, min(count, len(feed.Items)))
	for _, item := range feed.Items {
		if len(results) >= count {
			break
		}
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		title, source := splitHeadlineSource(item.Title)
		results = append(results, domain.SearchResult{
			Link:    strings.TrimSpace(item.Link),
			Title:   title,
			Snippet: htmlText(item.Description),
			Date:    feedItemDate(item),
			Source:  source,
		})
	}

	return results, nil
}

// splitHeadlineSource splits Google News "Headline - Publisher" titles.
func splitHeadlineSource(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, " - ")
	if idx <= 0 {
		return raw, ""
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+3:])
}

// htmlText flattens an HTML fragment to its text.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func feedItemDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.DateOnly)
	}
	return strings.TrimSpace(item.Published)
}
