package domain

import "strings"

// Domain contains the records that flow through an ingestion pass.

// SearchResult points at a candidate article found by a search provider.
// Err is set when the result block did not match the expected structure;
// such entries carry no usable fields and are skipped downstream.
type SearchResult struct {
	Link    string
	Title   string
	Snippet string
	Date    string
	Source  string
	Err     error
}

// ExtractedArticle is the outcome of running the extraction cascade over a page.
// The zero value is the blank record returned when nothing matched.
type ExtractedArticle struct {
	Link     string
	Title    string
	BodyText string
	Date     string
	Source   string
}

// IsEmpty reports whether every field is blank.
func (a ExtractedArticle) IsEmpty() bool {
	return a == ExtractedArticle{}
}

// HasBody reports whether the body text contains anything besides whitespace.
func (a ExtractedArticle) HasBody() bool {
	return strings.TrimSpace(a.BodyText) != ""
}

// NewsItem is the unit handed to the orchestrator.
type NewsItem struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ArticleRecord is written to the {category}_articles table.
type ArticleRecord struct {
	Date    string
	Title   string
	Content string
	NewsURL string
}

// Row returns the column map for the storage sink.
func (r ArticleRecord) Row() map[string]any {
	return map[string]any{
		"date":     r.Date,
		"title":    r.Title,
		"content":  r.Content,
		"news_url": r.NewsURL,
	}
}

// SummaryRecord is written to the {category}_summary table.
type SummaryRecord struct {
	Date      string
	Summary   string
	NewsTitle string
	NewsURL   string
}

// Row returns the column map for the storage sink.
func (r SummaryRecord) Row() map[string]any {
	return map[string]any{
		"date":       r.Date,
		"summary":    r.Summary,
		"news_title": r.NewsTitle,
		"news_url":   r.NewsURL,
	}
}
