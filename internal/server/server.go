// Package server exposes ingestion and on-demand summarization over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/khobor-digest/internal/category"
	"github.com/Adda-Baaj/khobor-digest/internal/ingest"
	"github.com/Adda-Baaj/khobor-digest/internal/logger"
)

// Categories resolves and lists the configured categories.
type Categories interface {
	Resolve(name string) (category.Profile, error)
	Profiles() []category.Profile
}

// Tasks submits background work and looks it up by id.
type Tasks interface {
	Submit(category, topic string, count int) *ingest.Task
	SubmitSummarize(category, query string) *ingest.Task
	Task(id string) (*ingest.Task, bool)
}

// Config holds listener and auth settings.
type Config struct {
	Addr         string
	APIKey       string
	ArticleCount int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the gin front door.
type Server struct {
	cfg        Config
	categories Categories
	tasks      Tasks
	log        logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New wires routes and middleware.
func New(cfg Config, categories Categories, tasks Tasks, log logger.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:        cfg,
		categories: categories,
		tasks:      tasks,
		log:        logger.Ensure(log),
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/", s.requireAPIKey())
	{
		api.POST("/upload_all", s.uploadAll)
		api.POST("/summarize", s.summarize)
		api.GET("/tasks/:id", s.task)
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.InfoObj("http server listening", "server_start", map[string]any{"addr": s.cfg.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	profiles := s.categories.Profiles()
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"categories": names,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) uploadAll(c *gin.Context) {
	profiles := s.categories.Profiles()
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		task := s.tasks.Submit(p.Name, p.Query, s.cfg.ArticleCount)
		ids = append(ids, task.ID)
	}
	s.log.InfoObj("ingestion submitted for all categories", "upload_all", map[string]any{"tasks": ids})
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Uploading all news summaries",
		"tasks":   ids,
	})
}

func (s *Server) summarize(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	name := strings.TrimSpace(c.Query("category"))
	if query == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query and category are required"})
		return
	}

	profile, err := s.categories.Resolve(name)
	if err != nil {
		if errors.Is(err, category.ErrUnknownCategory) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := s.tasks.SubmitSummarize(profile.Name, query)
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Summarization started",
		"task_id": task.ID,
	})
}

func (s *Server) task(c *gin.Context) {
	task, ok := s.tasks.Task(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task.Snapshot())
}

// requireAPIKey accepts the key in X-API-Key or as a bearer token. It is a
// no-op when no key is configured.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	want := []byte(s.cfg.APIKey)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got := c.GetHeader("X-API-Key")
		if got == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.InfoObj("http request", "http_request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
	}
}
