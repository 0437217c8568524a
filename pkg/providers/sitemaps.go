package providers

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
)

// responseSnippet returns a truncated snippet of the response body for logging.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

type googleNewsSitemap struct {
	URLs []googleNewsURL `xml:"url"`
}

type googleNewsURL struct {
	Loc  string           `xml:"loc"`
	News googleNewsDetail `xml:"news"`
}

type sitemapIndex struct {
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

type googleNewsDetail struct {
	Publication     googleNewsPublication `xml:"publication"`
	PublicationDate string                `xml:"publication_date"`
	Keywords        string                `xml:"keywords"`
	Title           string                `xml:"title"`
}

type googleNewsPublication struct {
	Name string `xml:"name"`
}

// parseGoogleNewsSitemap parses the XML data into a slice of googleNewsURL structs.
func parseGoogleNewsSitemap(data []byte) ([]googleNewsURL, error) {
	var sitemap googleNewsSitemap
	if err := xml.Unmarshal(data, &sitemap); err != nil {
		return nil, err
	}
	return sitemap.URLs, nil
}

// parseSitemapIndex parses an XML sitemap index file and returns the nested sitemap URLs.
func parseSitemapIndex(data []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// buildResultsFromSitemap turns sitemap entries matching query into search results.
func buildResultsFromSitemap(source, query string, urls []googleNewsURL) []domain.SearchResult {
	terms := queryTerms(query)
	results := make([]domain.SearchResult, 0, len(urls))
	for _, entry := range urls {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}

		title := strings.TrimSpace(entry.News.Title)
		keywords := parseKeywords(entry.News.Keywords)
		if !matchesTerms(terms, title, keywords) {
			continue
		}

		src := strings.TrimSpace(entry.News.Publication.Name)
		if src == "" {
			src = source
		}

		results = append(results, domain.SearchResult{
			Link:    loc,
			Title:   title,
			Snippet: strings.Join(keywords, ", "),
			Date:    formatPublicationDate(entry.News.PublicationDate),
			Source:  src,
		})
	}
	return results
}

// queryTerms splits a query into lower-cased words.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// matchesTerms reports whether every term appears in the title or keywords.
func matchesTerms(terms []string, title string, keywords []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(title + " " + strings.Join(keywords, " "))
	for _, t := range terms {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

// parseKeywords splits a comma-separated string of keywords into a slice of trimmed strings.
func parseKeywords(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	if len(keywords) == 0 {
		return nil
	}
	return keywords
}

// formatPublicationDate normalizes RFC3339 dates to YYYY-MM-DD and passes anything else through.
func formatPublicationDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(time.DateOnly)
	}

	return raw
}
