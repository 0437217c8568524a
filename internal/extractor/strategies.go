package extractor

import (
	"github.com/PuerkitoBio/goquery"
)

// Strategy locates candidate article containers in a parsed page.
// Locate returns an empty selection when the strategy does not apply.
type Strategy interface {
	Name() string
	Locate(doc *goquery.Document) *goquery.Selection
}

// DefaultStrategies returns the built-in cascade, most specific first.
func DefaultStrategies() []Strategy {
	return []Strategy{
		articleElement{},
		classToken{token: "article"},
		classToken{token: "news"},
		headingContainer{},
	}
}

// articleElement matches semantic <article> elements.
type articleElement struct{}

func (articleElement) Name() string { return "article-element" }

func (articleElement) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find("article")
}

// classToken matches divs whose class list contains token as a whole word.
// The ~= attribute selector compares whitespace separated tokens, so
// "news-ticker" does not match "news".
type classToken struct {
	token string
}

func (c classToken) Name() string { return "div-class-" + c.token }

func (c classToken) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find(`div[class~="` + c.token + `"]`)
}

// headingContainer matches divs holding a top-level heading somewhere below them.
type headingContainer struct{}

func (headingContainer) Name() string { return "div-with-heading" }

func (headingContainer) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("h1, h2, h3").Length() > 0
	})
}
