// Package extractor pulls the main article fields out of arbitrary news pages.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/internal/logger"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

const maxHTMLBodyBytes = 2 << 20 // 2 MiB

// ErrFetchFailure marks a page that could not be retrieved.
var ErrFetchFailure = errors.New("article fetch failed")

// Extractor fetches article pages and runs the strategy cascade over them.
type Extractor struct {
	client     httpclient.Client
	userAgent  string
	strategies []Strategy
	log        logger.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Extractor) {
		if len(strategies) > 0 {
			e.strategies = strategies
		}
	}
}

// WithUserAgent overrides the browser identity sent with page requests.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) { e.userAgent = ua }
}

// New creates an Extractor. A nil client gets a default resty client.
func New(client httpclient.Client, log logger.Logger, opts ...Option) *Extractor {
	if client == nil {
		client = httpclient.NewRestyClient(0)
	}
	e := &Extractor{
		client:     client,
		strategies: DefaultStrategies(),
		log:        logger.Ensure(log),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads pageURL and extracts its article fields. Fetch and parse
// failures are logged and yield the blank record.
func (e *Extractor) Extract(ctx context.Context, pageURL string) domain.ExtractedArticle {
	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		e.log.WarnObj("article fetch failed", "extract_fetch_error", map[string]any{
			"url":   pageURL,
			"error": err.Error(),
		})
		return domain.ExtractedArticle{}
	}

	art := e.ExtractHTML(pageURL, body)
	e.log.DebugObj("article extracted", "extract_done", map[string]any{
		"url":        pageURL,
		"has_body":   art.HasBody(),
		"body_chars": len(art.BodyText),
	})
	return art
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := e.client.Get(ctx, pageURL, httpclient.BrowserHeaders(e.userAgent))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailure, resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		e.log.InfoObj("html body truncated", "truncation", map[string]any{
			"url":      pageURL,
			"original": len(body),
			"kept":     maxHTMLBodyBytes,
		})
		body = body[:maxHTMLBodyBytes]
	}
	return body, nil
}

// ExtractHTML runs the cascade over an already downloaded page. It is
// deterministic: the same input always yields the same record.
func (e *Extractor) ExtractHTML(pageURL string, body []byte) domain.ExtractedArticle {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.log.WarnObj("html parse failed", "extract_parse_error", map[string]any{
			"url":   pageURL,
			"error": err.Error(),
		})
		return domain.ExtractedArticle{}
	}

	for _, strategy := range e.strategies {
		candidates := strategy.Locate(doc)
		if candidates == nil || candidates.Length() == 0 {
			continue
		}
		e.log.DebugObj("extraction strategy matched", "extract_strategy", map[string]any{
			"url":        pageURL,
			"strategy":   strategy.Name(),
			"candidates": candidates.Length(),
		})
		return fieldsFrom(candidates.First(), pageURL)
	}

	return domain.ExtractedArticle{}
}

// fieldsFrom reads the article fields from a single container.
func fieldsFrom(node *goquery.Selection, pageURL string) domain.ExtractedArticle {
	art := domain.ExtractedArticle{
		Title:  firstNonEmpty(firstText(node, "h1"), firstText(node, "h2"), firstText(node, "h3")),
		Date:   firstText(node, "time"),
		Source: firstNonEmpty(firstText(node, "span.source"), firstText(node, "span.author")),
	}

	if href, ok := node.Find("a[href]").First().Attr("href"); ok {
		art.Link = resolveURL(href, pageURL)
	}

	paragraphs := make([]string, 0, 8)
	node.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := clean(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	art.BodyText = strings.Join(paragraphs, " ")

	return art
}

func firstText(node *goquery.Selection, sel string) string {
	found := node.Find(sel).First()
	if found.Length() == 0 {
		return ""
	}
	return clean(found.Text())
}

// clean trims and unescapes text. goquery already decodes one level of
// entities, so this handles pages that double-escape them.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(strings.TrimSpace(s)))
}

// firstNonEmpty returns the first non-empty string from the given values.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
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
