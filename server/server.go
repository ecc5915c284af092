// Package server implements the lawscope HTTP surface: the app shell, the JSON api
// and RSS/OPML output.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/lawscope/pkg/app"
	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/feed"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/newsroom.go -pkg mocks -skip-ensure -fmt goimports . Newsroom
//go:generate moq -out mocks/refresher.go -pkg mocks -skip-ensure -fmt goimports . Refresher

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	news      Newsroom
	refresher Refresher
	generator *feed.Generator
	sources   []domain.FeedSource
	version   string
	debug     bool
	now       func() time.Time

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Newsroom is the working set with its view models
type Newsroom interface {
	View(sel domain.Selection, now time.Time) app.View
	Items(sel domain.Selection, now time.Time) []domain.NewsItem
	Status() app.Info
	Courts() []string
}

// Refresher starts an ingestion run on demand
type Refresher interface {
	Trigger() error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Params for New
type Params struct {
	Config    ConfigProvider
	News      Newsroom
	Refresher Refresher
	Generator *feed.Generator
	Sources   []domain.FeedSource
	Version   string
	Debug     bool
}

// New initializes a new server instance
func New(p Params) *Server {
	s := &Server{
		config:    p.Config,
		news:      p.News,
		refresher: p.Refresher,
		generator: p.Generator,
		sources:   p.Sources,
		version:   p.Version,
		debug:     p.Debug,
		now:       time.Now,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	httpServer := s.httpServer
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler returns the router, used by tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("lawscope", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	// app shell
	s.router.HandleFunc("GET /{$}", s.assetHandler("index.html"))
	for _, name := range []string{"index.html", "style.css", "app.js"} {
		s.router.HandleFunc("GET /"+name, s.assetHandler(name))
	}

	// API routes
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("GET /courts", s.courtsHandler)
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("POST /refresh", s.refreshHandler)
	})

	// RSS and OPML routes
	s.router.HandleFunc("GET /rss", s.rssHandler)
	s.router.HandleFunc("GET /rss/{category}", s.rssHandler)
	s.router.HandleFunc("GET /opml", s.opmlHandler)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
