package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "khobor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KHOBOR_SUMMARIZER_API_KEY", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.HTTP.Timeout != 15*time.Second {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Server, cfg.HTTP)
	}
	if cfg.Storage.Driver != "bolt" || cfg.Storage.Path != "data/khobor.db" {
		t.Errorf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Summarizer.ChunkChars != 10000 || cfg.Summarizer.ChunkOverlap != 500 {
		t.Errorf("chunk defaults: %+v", cfg.Summarizer)
	}
	if got := strings.Join(cfg.CategoryNames(), ","); got != "sports,technology,politics,health" {
		t.Errorf("categories = %s", got)
	}
	if cfg.Summarizer.APIKey != "secret" {
		t.Errorf("env override not applied: %q", cfg.Summarizer.APIKey)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
search:
  provider: Sitemap
  sitemap_url: https://paper.example.com/sitemap.xml
crawler:
  request_delay: 250ms
summarizer:
  provider: openai
  api_key: from-file
storage:
  driver: postgres
  dsn: postgres://localhost/khobor
categories:
  - name: Sports
    query: cricket
  - name: science
    prompt: "Summarize {text}"
`)
	t.Setenv("KHOBOR_SERVER_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Search.Provider != "sitemap" || cfg.Crawler.RequestDelay != 250*time.Millisecond {
		t.Errorf("search/crawler: %+v %+v", cfg.Search, cfg.Crawler)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[0].Name != "sports" || cfg.Categories[0].Query != "cricket" {
		t.Errorf("categories = %+v", cfg.Categories)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8080"},
		HTTP:       HTTPConfig{Timeout: time.Second},
		Search:     SearchConfig{Provider: "google"},
		Crawler:    CrawlerConfig{Workers: 1},
		Ingest:     IngestConfig{Workers: 1, ArticleCount: 1},
		Summarizer: SummarizerConfig{Provider: "gemini", APIKey: "k", ChunkChars: 100, ChunkOverlap: 10},
		Storage:    StorageConfig{Driver: "bolt", Path: "x.db"},
		Categories: DefaultCategories(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "sitemap without url", mutate: func(c *Config) { c.Search.Provider = "sitemap" }, wantErr: "search.sitemap_url"},
		{name: "serpapi without key", mutate: func(c *Config) { c.Search.Provider = "serpapi" }, wantErr: "search.serpapi_key"},
		{name: "unknown search", mutate: func(c *Config) { c.Search.Provider = "bing" }, wantErr: "not supported"},
		{name: "missing api key", mutate: func(c *Config) { c.Summarizer.APIKey = "" }, wantErr: "summarizer.api_key"},
		{name: "overlap too large", mutate: func(c *Config) { c.Summarizer.ChunkOverlap = 100 }, wantErr: "chunk_overlap"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "storage.dsn"},
		{name: "supabase without key", mutate: func(c *Config) {
			c.Storage.Driver = "supabase"
			c.Storage.SupabaseURL = "https://x.supabase.co"
		}, wantErr: "supabase_key"},
		{name: "duplicate category", mutate: func(c *Config) {
			c.Categories = append(c.Categories, CategoryConfig{Name: "sports"})
		}, wantErr: "duplicate"},
		{name: "prompt without placeholder", mutate: func(c *Config) { c.Categories[0].Prompt = "no placeholder" }, wantErr: "{text}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
