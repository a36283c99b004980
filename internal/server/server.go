// Package server exposes the question answering service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/history"
	"github.com/ziadkadry99/doc-qa/internal/qa"
)

// Config holds server configuration.
type Config struct {
	Host      string
	Port      int
	APIPrefix string
	// APIToken protects every API route except health. Empty disables
	// authentication.
	APIToken          string
	AllowAll          bool // allow all CORS origins (dev mode)
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
	Version           string
}

// Server is the HTTP front end of the QA service.
type Server struct {
	cfg        Config
	svc        *qa.Service
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server for svc.
func New(cfg Config, svc *qa.Service, logger *slog.Logger) *Server {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	if s.cfg.RateLimitRequests > 0 {
		r.Use(newRateLimiter(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow, s.logger).Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found", "The requested endpoint does not exist", "NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not supported on "+r.URL.Path, "METHOD_NOT_ALLOWED")
	})

	r.Get("/", s.handleRoot)
	r.Get("/ping", handlePing)

	r.Route(s.cfg.APIPrefix, func(api chi.Router) {
		api.With(middleware.Timeout(s.cfg.RequestTimeout)).Get("/health", s.handleHealth)

		api.Group(func(authed chi.Router) {
			authed.Use(bearerAuth(s.cfg.APIToken, s.logger))

			// Websocket sessions outlive the request timeout.
			authed.Get("/ws", s.handleWebSocket)

			authed.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(s.cfg.RequestTimeout))

				r.Post("/hackrx/run", s.handleRun)
				r.Post("/query", s.handleQuery)
				r.Get("/stats", s.handleStats)
				r.Delete("/index/clear", s.handleClearIndex)
				r.Delete("/documents/{id}", s.handleRemoveDocument)

				documents.RegisterRoutes(r, s.svc.Documents())
				if h := s.svc.History(); h != nil {
					history.RegisterRoutes(r, h)
				}
			})
		})
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = s.newHTTPServer()
	return s.serve()
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) serve() error {
	s.logger.Info("docqa server listening", "addr", s.Addr(), "api_prefix", s.cfg.APIPrefix, "auth", s.cfg.APIToken != "")
	return s.httpServer.ListenAndServe()
}

// Run starts the server and shuts it down gracefully when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = s.newHTTPServer()
	errCh := make(chan error, 1)
	go func() { errCh <- s.serve() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down docqa server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
