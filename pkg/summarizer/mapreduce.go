package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/khobor-digest/internal/logger"
)

// maxReduceDepth bounds how many times partial summaries are re-summarized.
const maxReduceDepth = 3

// MapReduce summarizes each chunk of long content with the category prompt,
// then summarizes the joined partial summaries with the same prompt.
type MapReduce struct {
	model   Model
	prompts *Prompts
	chunk   ChunkConfig
	log     logger.Logger
}

// NewMapReduce wraps model in a category-aware map-reduce summarizer.
func NewMapReduce(model Model, prompts *Prompts, chunk ChunkConfig, log logger.Logger) *MapReduce {
	return &MapReduce{
		model:   model,
		prompts: prompts,
		chunk:   chunk.normalized(),
		log:     logger.Ensure(log),
	}
}

// Summarize implements Summarizer.
func (m *MapReduce) Summarize(ctx context.Context, category, content string) (Result, error) {
	if strings.TrimSpace(content) == "" {
		return Result{}, fmt.Errorf("summarize %s: empty content", category)
	}
	return m.run(ctx, category, content, 0)
}

func (m *MapReduce) run(ctx context.Context, category, content string, depth int) (Result, error) {
	chunks := SplitIntoChunks(content, m.chunk)
	if len(chunks) == 1 || depth >= maxReduceDepth {
		return m.generate(ctx, category, content)
	}

	m.log.DebugObj("summarizing in chunks", "summarize_map", map[string]any{
		"category": category,
		"model":    m.model.Name(),
		"chunks":   len(chunks),
		"depth":    depth,
	})

	partials := make([]string, 0, len(chunks))
	var last Result
	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := m.generate(ctx, category, chunk)
		if err != nil {
			return Result{}, fmt.Errorf("summarize chunk %d/%d: %w", idx+1, len(chunks), err)
		}
		last = res
		if res.Relevant && res.Text != "" {
			partials = append(partials, res.Text)
		}
	}

	if len(partials) == 0 {
		return Result{Text: last.Text, Relevant: false}, nil
	}
	return m.run(ctx, category, strings.Join(partials, "\n\n"), depth+1)
}

func (m *MapReduce) generate(ctx context.Context, category, text string) (Result, error) {
	res, err := m.model.Generate(ctx, m.prompts.Render(category, text))
	if err != nil {
		return Result{}, fmt.Errorf("%s generate: %w", m.model.Name(), err)
	}
	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}
