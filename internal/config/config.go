// Package config loads khobor-digest settings from a config file, a local .env
// file and KHOBOR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "KHOBOR"

// Config is the full application configuration.
type Config struct {
	Server         ServerConfig     `mapstructure:"server"`
	Log            LogConfig        `mapstructure:"log"`
	HTTP           HTTPConfig       `mapstructure:"http"`
	Search         SearchConfig     `mapstructure:"search"`
	Crawler        CrawlerConfig    `mapstructure:"crawler"`
	Ingest         IngestConfig     `mapstructure:"ingest"`
	Summarizer     SummarizerConfig `mapstructure:"summarizer"`
	Storage        StorageConfig    `mapstructure:"storage"`
	PublishersFile string           `mapstructure:"publishers_file"`
	Categories     []CategoryConfig `mapstructure:"categories"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	APIKey          string        `mapstructure:"api_key"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type SearchConfig struct {
	Provider   string `mapstructure:"provider"`
	SitemapURL string `mapstructure:"sitemap_url"`
	SerpAPIKey string `mapstructure:"serpapi_key"`
}

type CrawlerConfig struct {
	Workers      int           `mapstructure:"workers"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
}

// IngestConfig tunes ingestion passes and background tasks. An empty
// Schedule disables periodic ingestion.
type IngestConfig struct {
	Workers        int    `mapstructure:"workers"`
	ArticleCount   int    `mapstructure:"article_count"`
	MaxTasks       int    `mapstructure:"max_tasks"`
	RetainTasks    int    `mapstructure:"retain_tasks"`
	RetrievalLimit int    `mapstructure:"retrieval_limit"`
	Schedule       string `mapstructure:"schedule"`
}

type SummarizerConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ChunkChars   int           `mapstructure:"chunk_chars"`
	ChunkOverlap int           `mapstructure:"chunk_overlap"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	SupabaseURL string `mapstructure:"supabase_url"`
	SupabaseKey string `mapstructure:"supabase_key"`
	Migrate     bool   `mapstructure:"migrate"`
}

// CategoryConfig declares one category. Prompt overrides the built-in
// template and must contain the {text} placeholder.
type CategoryConfig struct {
	Name          string `mapstructure:"name"`
	Query         string `mapstructure:"query"`
	Prompt        string `mapstructure:"prompt"`
	ArticlesTable string `mapstructure:"articles_table"`
	SummaryTable  string `mapstructure:"summary_table"`
}

// DefaultCategories is the category set used when none is configured.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "sports", Query: "sports"},
		{Name: "technology", Query: "technology"},
		{Name: "politics", Query: "politics"},
		{Name: "health", Query: "health"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "")

	v.SetDefault("search.provider", "google")
	v.SetDefault("search.sitemap_url", "")
	v.SetDefault("search.serpapi_key", "")

	v.SetDefault("crawler.workers", 8)
	v.SetDefault("crawler.request_delay", time.Duration(0))

	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.article_count", 10)
	v.SetDefault("ingest.max_tasks", 4)
	v.SetDefault("ingest.retain_tasks", 256)
	v.SetDefault("ingest.retrieval_limit", 5)
	v.SetDefault("ingest.schedule", "")

	v.SetDefault("summarizer.provider", "gemini")
	v.SetDefault("summarizer.model", "")
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.base_url", "")
	v.SetDefault("summarizer.timeout", 60*time.Second)
	v.SetDefault("summarizer.chunk_chars", 10000)
	v.SetDefault("summarizer.chunk_overlap", 500)

	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.path", "data/khobor.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.supabase_url", "")
	v.SetDefault("storage.supabase_key", "")
	v.SetDefault("storage.migrate", true)

	v.SetDefault("publishers_file", "")
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; path may be empty, in which case only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	c.Summarizer.Provider = strings.ToLower(strings.TrimSpace(c.Summarizer.Provider))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
	for i := range c.Categories {
		c.Categories[i].Name = strings.ToLower(strings.TrimSpace(c.Categories[i].Name))
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	if c.HTTP.Timeout <= 0 {
		add("http.timeout must be positive")
	}

	switch c.Search.Provider {
	case "google", "google-news-rss":
	case "sitemap":
		if strings.TrimSpace(c.Search.SitemapURL) == "" {
			add("search.sitemap_url is required for the sitemap provider")
		}
	case "serpapi":
		if strings.TrimSpace(c.Search.SerpAPIKey) == "" {
			add("search.serpapi_key is required for the serpapi provider")
		}
	default:
		add("search.provider %q is not supported", c.Search.Provider)
	}

	if c.Crawler.Workers <= 0 {
		add("crawler.workers must be positive")
	}
	if c.Ingest.Workers <= 0 {
		add("ingest.workers must be positive")
	}
	if c.Ingest.ArticleCount <= 0 {
		add("ingest.article_count must be positive")
	}

	switch c.Summarizer.Provider {
	case "gemini", "openai":
		if strings.TrimSpace(c.Summarizer.APIKey) == "" {
			add("summarizer.api_key is required")
		}
	default:
		add("summarizer.provider %q is not supported", c.Summarizer.Provider)
	}
	if c.Summarizer.ChunkChars <= 0 || c.Summarizer.ChunkOverlap < 0 || c.Summarizer.ChunkOverlap >= c.Summarizer.ChunkChars {
		add("summarizer.chunk_overlap must be smaller than a positive summarizer.chunk_chars")
	}

	switch c.Storage.Driver {
	case "bolt", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add("storage.path is required for the %s driver", c.Storage.Driver)
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add("storage.dsn is required for the postgres driver")
		}
	case "supabase":
		if strings.TrimSpace(c.Storage.SupabaseURL) == "" || strings.TrimSpace(c.Storage.SupabaseKey) == "" {
			add("storage.supabase_url and storage.supabase_key are required for the supabase driver")
		}
	default:
		add("storage.driver %q is not supported", c.Storage.Driver)
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			add("categories[%d].name is required", i)
			continue
		}
		if _, dup := seen[cat.Name]; dup {
			add("categories[%d]: duplicate name %q", i, cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if cat.Prompt != "" && !strings.Contains(cat.Prompt, "{text}") {
			add("categories[%d].prompt must contain {text}", i)
		}
	}

	return errors.Join(errs...)
}

// CategoryNames lists configured category names in config order.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}
