package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/khobor-digest/internal/domain"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
)

const pageURL = "https://news.example.com/world/story"

func TestExtractHTMLCascade(t *testing.T) {
	tests := []struct {
		name string
		html string
		want domain.ExtractedArticle
	}{
		{
			name: "article element",
			html: `<html><body>
<div class="news"><h1>Ticker</h1><p>ticker text</p></div>
<article>
  <h2>Second level</h2><h1>Main headline</h1>
  <a href="/world/story-2">more</a>
  <time>2024-05-01</time>
  <span class="author">Jane Roe</span>
  <p>First paragraph.</p>
  <p>  Second paragraph.  </p>
</article>
<article><h1>Other</h1><p>ignored</p></article>
</body></html>`,
			want: domain.ExtractedArticle{
				Link:     "https://news.example.com/world/story-2",
				Title:    "Main headline",
				BodyText: "First paragraph. Second paragraph.",
				Date:     "2024-05-01",
				Source:   "Jane Roe",
			},
		},
		{
			name: "article class token",
			html: `<html><body>
<div class="news"><h1>News block</h1><p>news text</p></div>
<div class="main article wide"><h3>Class headline</h3><span class="source">Wire</span><span class="author">Nobody</span><p>Body.</p></div>
</body></html>`,
			want: domain.ExtractedArticle{
				Title:    "Class headline",
				BodyText: "Body.",
				Source:   "Wire",
			},
		},
		{
			name: "news class token",
			html: `<html><body>
<div class="news-ticker"><h1>Not a token match</h1></div>
<div class="top news"><h2>News headline</h2><p>One.</p><p></p><p>Two.</p></div>
</body></html>`,
			want: domain.ExtractedArticle{
				Title:    "News headline",
				BodyText: "One. Two.",
			},
		},
		{
			name: "div with heading",
			html: `<html><body>
<div id="nav"><a href="/home">home</a></div>
<div id="wrap"><section><h3>Deep heading</h3><p>Deep body.</p></section></div>
</body></html>`,
			want: domain.ExtractedArticle{
				Title:    "Deep heading",
				BodyText: "Deep body.",
			},
		},
	}

	ex := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.ExtractHTML(pageURL, []byte(tt.html))
			if got != tt.want {
				t.Errorf("ExtractHTML()\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestExtractHTMLBlankPage(t *testing.T) {
	ex := New(nil, nil)
	got := ex.ExtractHTML(pageURL, []byte(`<html><head><title>x</title></head><body><p>loose text</p></body></html>`))
	if !got.IsEmpty() {
		t.Fatalf("expected blank record, got %+v", got)
	}
}

func TestExtractHTMLUnescapesEntities(t *testing.T) {
	ex := New(nil, nil)
	page := `<article><h1>Tom &amp;amp; Jerry</h1><p>Caf&amp;eacute; &quot;quote&quot;</p></article>`
	got := ex.ExtractHTML(pageURL, []byte(page))
	if got.Title != "Tom & Jerry" {
		t.Errorf("title = %q", got.Title)
	}
	if got.BodyText != `Café "quote"` {
		t.Errorf("body = %q", got.BodyText)
	}
}

func TestExtractHTMLIsDeterministic(t *testing.T) {
	ex := New(nil, nil)
	page := []byte(`<div class="article"><h2>Same</h2><a href="x">x</a><p>a</p><p>b</p></div>`)
	first := ex.ExtractHTML(pageURL, page)
	second := ex.ExtractHTML(pageURL, page)
	if first != second {
		t.Fatalf("records differ: %+v vs %+v", first, second)
	}
	if first.Link != "https://news.example.com/world/x" {
		t.Errorf("link = %q", first.Link)
	}
}

func TestExtractFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`<article><h1>Fetched</h1><p>Body text.</p></article>`))
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer srv.Close()

	ex := New(httpclient.NewRestyClient(time.Second), nil, WithUserAgent("test-agent"))

	got := ex.Extract(context.Background(), srv.URL+"/ok")
	if got.Title != "Fetched" || got.BodyText != "Body text." {
		t.Errorf("unexpected record: %+v", got)
	}

	if blank := ex.Extract(context.Background(), srv.URL+"/missing"); !blank.IsEmpty() {
		t.Errorf("expected blank record on non-200, got %+v", blank)
	}
}

func TestExtractTransportFailureIsBlank(t *testing.T) {
	ex := New(httpclient.NewRestyClient(100*time.Millisecond), nil)
	got := ex.Extract(context.Background(), "http://127.0.0.1:1/unreachable")
	if !got.IsEmpty() {
		t.Fatalf("expected blank record, got %+v", got)
	}
}

type selectorStrategy struct{ sel string }

func (s selectorStrategy) Name() string { return "selector-" + s.sel }

func (s selectorStrategy) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find(s.sel)
}

func TestWithStrategiesOverridesCascade(t *testing.T) {
	ex := New(nil, nil, WithStrategies(selectorStrategy{sel: "main"}))
	got := ex.ExtractHTML(pageURL, []byte(`<article><h1>Skipped</h1></article><main><h1>Custom</h1><p>x</p></main>`))
	if got.Title != "Custom" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.Contains(got.BodyText, "x") {
		t.Errorf("body = %q", got.BodyText)
	}
}
