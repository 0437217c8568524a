package summarizer

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"
)

//go:embed prompts/*.txt
var promptFS embed.FS

const defaultPromptName = "default"

// Prompts holds the prompt template for each category. Templates use
// {text} for the content and {category} for the category name.
type Prompts struct {
	mu        sync.RWMutex
	templates map[string]string
}

// DefaultPrompts loads the embedded category prompts.
func DefaultPrompts() (*Prompts, error) {
	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}

	p := &Prompts{templates: make(map[string]string, len(entries))}
	for _, entry := range entries {
		raw, err := promptFS.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		p.templates[name] = string(raw)
	}
	if _, ok := p.templates[defaultPromptName]; !ok {
		return nil, fmt.Errorf("embedded prompts missing %q", defaultPromptName)
	}
	return p, nil
}

// Set registers or replaces the template for category.
func (p *Prompts) Set(category, template string) error {
	if !strings.Contains(template, "{text}") {
		return fmt.Errorf("prompt for %q has no {text} placeholder", category)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[normalizeCategory(category)] = template
	return nil
}

// Render fills the category template, falling back to the generic one.
func (p *Prompts) Render(category, text string) string {
	category = normalizeCategory(category)

	p.mu.RLock()
	tmpl, ok := p.templates[category]
	if !ok {
		tmpl = p.templates[defaultPromptName]
	}
	p.mu.RUnlock()

	return strings.NewReplacer("{category}", category, "{text}", text).Replace(tmpl)
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
