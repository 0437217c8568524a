package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/khobor-digest/internal/logger"
)

// Supported model providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and configures the model behind the summarizer.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Chunk    ChunkConfig
	// Prompts overrides embedded category prompts, keyed by category.
	Prompts map[string]string
}

// NewModel builds the configured model client.
func NewModel(ctx context.Context, cfg Config) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("unsupported summarizer provider %q", cfg.Provider)
	}
}

// New builds the map-reduce summarizer shared by every category.
func New(ctx context.Context, cfg Config, log logger.Logger) (*MapReduce, error) {
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	prompts, err := DefaultPrompts()
	if err != nil {
		return nil, err
	}
	for category, tmpl := range cfg.Prompts {
		if strings.TrimSpace(tmpl) == "" {
			continue
		}
		if err := prompts.Set(category, tmpl); err != nil {
			return nil, err
		}
	}
	return NewMapReduce(model, prompts, cfg.Chunk, log), nil
}
