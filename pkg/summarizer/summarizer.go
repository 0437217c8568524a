// Package summarizer condenses article text with a category prompt and classifies its relevance.
package summarizer

import (
	"context"
	"strings"
)

// legacySentinel is the marker text-only models are told to answer with for off-topic content.
const legacySentinel = "not relevant"

// Result is a summary plus whether the content belongs to the requested category.
type Result struct {
	Text     string `json:"summary"`
	Relevant bool   `json:"relevant"`
}

// Summarizer produces a category summary for a piece of content.
type Summarizer interface {
	Summarize(ctx context.Context, category, content string) (Result, error)
}

// Model runs a single fully rendered prompt.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Result, error)
}

// ParseLegacy classifies free-text model output. Any occurrence of
// "not relevant", in any letter case, marks the result irrelevant.
func ParseLegacy(text string) Result {
	text = strings.TrimSpace(text)
	return Result{
		Text:     text,
		Relevant: !strings.Contains(strings.ToLower(text), legacySentinel),
	}
}

// Func adapts a function to the Summarizer interface.
type Func func(ctx context.Context, category, content string) (Result, error)

func (f Func) Summarize(ctx context.Context, category, content string) (Result, error) {
	return f(ctx, category, content)
}
