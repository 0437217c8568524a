package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

const defaultGoogleSearchURL = "https://www.google.com/search"

// Structural selectors of a Google News result page.
const (
	googleResultSel  = "div.SoaBEf"
	googleTitleSel   = "div.MBeuO"
	googleSnippetSel = ".GI74Re"
	googleDateSel    = ".LfVVr"
	googleSourceSel  = ".NUnG9d span"
)

// GoogleConfig configures the Google News HTML searcher.
type GoogleConfig struct {
	Endpoint  string
	UserAgent string
	Locale    string
}

// googleSearcher scrapes the news tab of the Google search page.
type googleSearcher struct {
	client HTTPClient
	cfg    GoogleConfig
}

// NewGoogleSearcher builds a Searcher backed by the Google news results page.
func NewGoogleSearcher(client HTTPClient, cfg GoogleConfig) Searcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultGoogleSearchURL
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = "us"
	}
	return &googleSearcher{client: client, cfg: cfg}
}

func (s *googleSearcher) ID() string {
	return SearcherGoogle
}

// Search fetches a single result page and returns up to count entries. Entries
// whose block is missing an expected element carry an Err instead of fields.
func (s *googleSearcher) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if count <= 0 {
		return []domain.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("gl", s.cfg.Locale)
	params.Set("tbm", "nws")
	params.Set("num", strconv.Itoa(count))
	pageURL := s.cfg.Endpoint + "?" + params.Encode()

	body, err := fetchPage(ctx, s.client, pageURL, SearcherGoogle, httpclient.BrowserHeaders(s.cfg.UserAgent))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse google results: %w", err)
	}

	results := make([]domain.SearchResult, 0, count)
	doc.Find(googleResultSel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if len(results) >= count {
			return false
		}
		results = append(results, parseGoogleResult(el, s.cfg.Endpoint))
		return true
	})

	return capResults(results, count), nil
}

// parseGoogleResult reads one result block. Any missing element fails the whole entry.
func parseGoogleResult(el *goquery.Selection, base string) domain.SearchResult {
	href, ok := el.Find("a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.SearchResult{Err: fmt.Errorf("%w: link", ErrSelectorMismatch)}
	}

	fields := make(map[string]string, 4)
	for _, sel := range []string{googleTitleSel, googleSnippetSel, googleDateSel, googleSourceSel} {
		node := el.Find(sel).First()
		if node.Length() == 0 {
			return domain.SearchResult{Err: fmt.Errorf("%w: %s", ErrSelectorMismatch, sel)}
		}
		fields[sel] = strings.TrimSpace(node.Text())
	}

	return domain.SearchResult{
		Link:    resolveURL(href, base),
		Title:   fields[googleTitleSel],
		Snippet: fields[googleSnippetSel],
		Date:    fields[googleDateSel],
		Source:  fields[googleSourceSel],
	}
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}

	return baseURL.ResolveReference(parsed).String()
}
