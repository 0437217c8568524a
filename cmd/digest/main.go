// Command digest runs the khobor-digest news ingestion service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/Adda-Baaj/khobor-digest/internal/category"
	"github.com/Adda-Baaj/khobor-digest/internal/config"
	"github.com/Adda-Baaj/khobor-digest/internal/crawler"
	"github.com/Adda-Baaj/khobor-digest/internal/extractor"
	"github.com/Adda-Baaj/khobor-digest/internal/ingest"
	"github.com/Adda-Baaj/khobor-digest/internal/logger"
	"github.com/Adda-Baaj/khobor-digest/internal/server"
	"github.com/Adda-Baaj/khobor-digest/pkg/httpclient"
	"github.com/Adda-Baaj/khobor-digest/pkg/providers"
	"github.com/Adda-Baaj/khobor-digest/pkg/publishers"
	"github.com/Adda-Baaj/khobor-digest/pkg/storage"
	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

func main() {
	flags := pflag.NewFlagSet("digest", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	runOnce := flags.Bool("once", false, "ingest every category once and exit")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *runOnce); err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	client := httpclient.NewRestyClient(cfg.HTTP.Timeout)

	searcher, err := providers.DefaultSearcherRegistry(client, providers.Options{
		UserAgent:  cfg.HTTP.UserAgent,
		SitemapURL: cfg.Search.SitemapURL,
		SerpAPIKey: cfg.Search.SerpAPIKey,
	}).SearcherFor(cfg.Search.Provider)
	if err != nil {
		return err
	}

	extractorOpts := []extractor.Option{}
	if cfg.HTTP.UserAgent != "" {
		extractorOpts = append(extractorOpts, extractor.WithUserAgent(cfg.HTTP.UserAgent))
	}
	builder := crawler.NewBuilder(
		searcher,
		extractor.New(client, log, extractorOpts...),
		crawler.Config{Workers: cfg.Crawler.Workers, RequestDelay: cfg.Crawler.RequestDelay},
		log,
	)

	prompts := make(map[string]string, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if c.Prompt != "" {
			prompts[c.Name] = c.Prompt
		}
	}
	sum, err := summarizer.New(ctx, summarizer.Config{
		Provider: cfg.Summarizer.Provider,
		Model:    cfg.Summarizer.Model,
		APIKey:   cfg.Summarizer.APIKey,
		BaseURL:  cfg.Summarizer.BaseURL,
		Timeout:  cfg.Summarizer.Timeout,
		Chunk: summarizer.ChunkConfig{
			MaxChunkChars: cfg.Summarizer.ChunkChars,
			OverlapChars:  cfg.Summarizer.ChunkOverlap,
		},
		Prompts: prompts,
	}, log)
	if err != nil {
		return fmt.Errorf("build summarizer: %w", err)
	}

	profiles := make([]category.Profile, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		profiles = append(profiles, category.Profile{
			Name:          c.Name,
			Query:         c.Query,
			Summarizer:    sum,
			ArticlesTable: c.ArticlesTable,
			SummaryTable:  c.SummaryTable,
		})
	}
	router, err := category.NewRouter(profiles)
	if err != nil {
		return fmt.Errorf("build category router: %w", err)
	}

	store, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		SupabaseURL: cfg.Storage.SupabaseURL,
		SupabaseKey: cfg.Storage.SupabaseKey,
		Migrate:     cfg.Storage.Migrate,
		Tables:      tableSpecs(router.Profiles()),
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WarnObj("storage close failed", "storage_close_error", map[string]any{"error": err.Error()})
		}
	}()

	dispatcher, err := buildDispatcher(ctx, cfg.PublishersFile, log)
	if err != nil {
		return err
	}
	defer func() { _ = dispatcher.Close() }()

	orch := ingest.New(router, builder, store, ingest.Config{
		Workers:      cfg.Ingest.Workers,
		ArticleCount: cfg.Ingest.ArticleCount,
	}, log, ingest.WithNotifier(dispatcher))

	if once {
		return ingestAllOnce(ctx, orch, router, cfg.Ingest.ArticleCount, log)
	}

	retriever := ingest.NewRetriever(router, store, cfg.Ingest.RetrievalLimit, log)
	sched := ingest.NewScheduler(orch, retriever, ingest.SchedulerConfig{
		MaxConcurrent: cfg.Ingest.MaxTasks,
		Retain:        cfg.Ingest.RetainTasks,
	}, log)

	var c *cron.Cron
	if spec := strings.TrimSpace(cfg.Ingest.Schedule); spec != "" {
		c = cron.New()
		if _, err := c.AddFunc(spec, func() {
			for _, p := range router.Profiles() {
				sched.Submit(p.Name, p.Query, cfg.Ingest.ArticleCount)
			}
		}); err != nil {
			return fmt.Errorf("parse ingest.schedule %q: %w", spec, err)
		}
		c.Start()
		log.InfoObj("periodic ingestion scheduled", "cron_start", map[string]any{"schedule": spec})
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		APIKey:       cfg.Server.APIKey,
		ArticleCount: cfg.Ingest.ArticleCount,
	}, router, sched, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.InfoObj("shutdown requested", "shutdown", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WarnObj("http server shutdown failed", "server_shutdown_error", map[string]any{"error": err.Error()})
	}
	if c != nil {
		<-c.Stop().Done()
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.WarnObj("scheduler shutdown incomplete", "scheduler_shutdown_error", map[string]any{"error": err.Error()})
	}
	return serveErr
}

func tableSpecs(profiles []category.Profile) []storage.TableSpec {
	specs := make([]storage.TableSpec, 0, 2*len(profiles))
	for _, p := range profiles {
		specs = append(specs,
			storage.TableSpec{Name: p.ArticlesTable, Kind: storage.KindArticles},
			storage.TableSpec{Name: p.SummaryTable, Kind: storage.KindSummary},
		)
	}
	return specs
}

func buildDispatcher(ctx context.Context, path string, log logger.Logger) (*publishers.Dispatcher, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewDispatcher(nil, log), nil
	}
	cfgs, err := publishers.LoadConfigs(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), cfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	log.InfoObj("publishers ready", "publishers_ready", map[string]any{"count": len(pubs)})
	return publishers.NewDispatcher(pubs, log), nil
}

func ingestAllOnce(ctx context.Context, orch *ingest.Orchestrator, router *category.Router, count int, log logger.Logger) error {
	var errs []error
	for _, p := range router.Profiles() {
		report, err := orch.Ingest(ctx, p.Name, p.Query, count)
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", p.Name, err))
			continue
		}
		log.InfoObj("category ingested", "ingest_once", map[string]any{
			"category":         p.Name,
			"articles_stored":  report.ArticlesStored(),
			"summaries_stored": report.SummariesStored(),
			"failures":         report.Failures(),
		})
	}
	return errors.Join(errs...)
}
