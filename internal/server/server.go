// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and a logger, then server.New creates:
//
//	sqlite.DB → AuthService / ProjectService → AuthHandler / ProjectHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/openworld/internal/auth"
	"github.com/sakif/openworld/internal/config"
	"github.com/sakif/openworld/internal/handler"
	"github.com/sakif/openworld/internal/metrics"
	"github.com/sakif/openworld/internal/middleware"
	sqliteRepo "github.com/sakif/openworld/internal/repository/sqlite"
	"github.com/sakif/openworld/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained; callers that never Start (tests) call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
}

// Option customises a Server before its routes are built.
type Option func(*serverOptions)

type serverOptions struct {
	passwords *auth.PasswordService
	github    handler.GitHubSignIn
}

// WithPasswordService replaces the bcrypt settings (tests use a low cost).
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *serverOptions) { o.passwords = p }
}

// WithGitHub supplies the GitHub sign-in provider instead of building one
// from the config.
func WithGitHub(gh handler.GitHubSignIn) Option {
	return func(o *serverOptions) { o.github = gh }
}

// New creates a Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Open the database and apply migrations (sqlite.New)
//  2. Seed the sample projects into an empty catalog (when enabled)
//  3. Create the services with the repository interfaces
//  4. Create the handlers with the services
//  5. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not the repository or DB)
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := serverOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	if o.passwords == nil {
		o.passwords = auth.NewPasswordService()
	}
	if o.github == nil && cfg.GitHubEnabled() {
		o.github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
	}

	authService := service.NewAuthService(db, tokens, o.passwords, logger)
	projectService := service.NewProjectService(db, logger)

	if cfg.SeedSamples {
		if err := projectService.SeedSamples(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.setupRoutes(authService, projectService, o.github)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /health                    → store liveness
// GET    /metrics                   → Prometheus exposition
// POST   /api/register              → create account
// POST   /api/login                 → get bearer token
// GET    /api/me                    → caller's account  [auth]
// GET    /api/projects              → list catalog
// POST   /api/projects              → create project      [auth]
// POST   /api/projects/{id}/star    → star project        [auth]
// GET    /auth/github/login         → start GitHub sign-in (when configured)
// GET    /auth/github/callback      → finish GitHub sign-in (when configured)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger and Metrics: see the final status of every request
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflight requests from the frontend origin
func (s *Server) setupRoutes(authService *service.AuthService, projectService *service.ProjectService, github handler.GitHubSignIn) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.config.ClientOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	authHandler := handler.NewAuthHandler(authService, github, s.config.ClientOrigin, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/projects", projectHandler.HandleList)

		// Writes and /me need a bearer token. A missing or bad token is
		// rejected by RequireAuth before the handler, and therefore the store,
		// is reached.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/projects", projectHandler.HandleCreate)
			r.Post("/projects/{id}/star", projectHandler.HandleStar)
		})
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.logger.Info("GitHub sign-in enabled")
	}
}

// Handler returns the fully wired router. Useful with httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tokens returns the token service the server signs and verifies with.
func (s *Server) Tokens() *auth.TokenService {
	return s.tokens
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.Env),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
