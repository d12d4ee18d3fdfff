package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/crawlkit/internal/app"
)

// Server exposes the external interfaces of §6: submit scrape, submit
// crawl, crawl status, crawl cancel.
type Server struct {
	app      *app.App
	router   *http.ServeMux
	server   *http.Server
	validate *validator.Validate
}

// New creates a new HTTP server with the given app.
func New(application *app.App) *Server {
	s := &Server{
		app:      application,
		validate: validator.New(),
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a held scrape connection can run as long as its ScrapeOptions.Timeout
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes registers the §6 external interfaces on the router.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{http.MethodPost: s.handleScrape})
	})
	mux.HandleFunc("/v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{http.MethodPost: s.handleCrawlSubmit})
	})
	mux.HandleFunc("/v1/crawl/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/events") {
			RouteByMethod(w, r, MethodRouter{http.MethodGet: s.handleCrawlEvents})
			return
		}
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet:    s.handleCrawlStatus,
			http.MethodDelete: s.handleCrawlCancel,
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.app.Config.Server.Host, s.app.Config.Server.Port)

	s.app.Logger.Info().Str("address", addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
