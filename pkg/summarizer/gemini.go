package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig configures the Gemini model.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Gemini asks the Gemini API for a structured {summary, relevant} answer.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini model client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Generate runs prompt at temperature zero with a JSON response schema.
func (g *Gemini) Generate(ctx context.Context, prompt string) (Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiResultSchema(),
		SystemInstruction: genai.NewContentFromText(
			"Answer with a JSON object. Set relevant to false when the content does not belong to the requested news category.",
			genai.RoleUser,
		),
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}
	return decodeGeminiResult(resp.Text())
}

func geminiResultSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":  {Type: genai.TypeString},
			"relevant": {Type: genai.TypeBoolean},
		},
		Required: []string{"summary", "relevant"},
	}
}

// decodeGeminiResult parses the structured answer. The sentinel in the summary
// text overrides the relevant flag; plain text falls back to the sentinel convention.
func decodeGeminiResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, fmt.Errorf("empty gemini response")
	}

	cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(raw, "```json"), "```"), "```")
	var res Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &res); err != nil {
		return ParseLegacy(raw), nil
	}
	res.Text = strings.TrimSpace(res.Text)
	res.Relevant = res.Relevant && ParseLegacy(res.Text).Relevant
	return res, nil
}
