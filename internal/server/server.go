// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it opens the ballot store, builds the
// services on top of it, hands them to the handlers and maps URLs to
// handlers. Nothing else in the codebase constructs dependencies.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → repository.Store (sqlite.DB or mongostore.Store)
//	    → UserService, ElectionService, VotingService, TallyService, ActivityService
//	      → AuthHandler, ElectionHandler, ResultsHandler, UserHandler
//	        → chi routes
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

	"github.com/sakif/campus-ballot/internal/auth"
	"github.com/sakif/campus-ballot/internal/config"
	"github.com/sakif/campus-ballot/internal/handler"
	"github.com/sakif/campus-ballot/internal/middleware"
	"github.com/sakif/campus-ballot/internal/repository"
	"github.com/sakif/campus-ballot/internal/repository/mongostore"
	sqliteRepo "github.com/sakif/campus-ballot/internal/repository/sqlite"
	"github.com/sakif/campus-ballot/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after the HTTP server has
// drained, so no request is cut off mid-write.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.Store

	// streams is cancelled on shutdown to end live result websockets,
	// which http.Server.Shutdown does not wait for or close.
	streams    context.Context
	endStreams context.CancelFunc
}

// New opens the store selected by cfg and builds the server around it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore builds the server on an already open store. The server
// takes ownership of store.
func NewWithStore(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	streams, endStreams := context.WithCancel(context.Background())
	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		store:      store,
		streams:    streams,
		endStreams: endStreams,
	}

	if err := s.setupRoutes(); err != nil {
		endStreams()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		store, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return store, nil
	default:
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (everything under /api except register and login needs a
// token; [admin] is checked against the stored role, not the token's claim):
//
//	GET    /healthz                            → liveness
//	POST   /api/auth/register                  → create account
//	POST   /api/auth/login                     → issue JWT
//	GET    /api/me                             → current user
//	PUT    /api/me                             → edit own profile
//	GET    /api/me/votes                       → elections the caller voted in
//	GET    /api/elections                      → list (?tab=&q=)
//	GET    /api/elections/{id}                 → get
//	GET    /api/elections/{id}/vote            → has the caller voted
//	POST   /api/elections/{id}/vote            → cast ballot
//	GET    /api/elections/{id}/results         → tally
//	GET    /api/elections/{id}/results/live    → websocket tally stream
//	POST   /api/elections                      → create        [admin]
//	PUT    /api/elections/{id}                 → update        [admin]
//	DELETE /api/elections/{id}                 → delete        [admin]
//	GET    /api/users                          → list users    [admin]
//	PATCH  /api/users/{id}                     → role/status/faculty [admin]
//	DELETE /api/users/{id}                     → delete user   [admin]
//	GET    /api/activity                       → dashboard     [admin]
//
// MIDDLEWARE ORDER MATTERS:
// RequestID must run before Logger so every log line carries the id;
// Recoverer sits inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	opts := service.Options{StoreTimeout: s.config.StoreTimeout}

	userService := service.NewUserService(s.store, tokens, auth.NewPasswordService(), s.logger, opts)
	electionService := service.NewElectionService(s.store, s.store, s.store, s.logger, opts)
	votingService := service.NewVotingService(s.store, s.store, s.store, s.logger, opts)
	tallyService := service.NewTallyService(s.store, s.store, s.store, s.logger, opts)
	activityService := service.NewActivityService(s.store, s.logger, opts)

	authHandler := handler.NewAuthHandler(userService, s.logger)
	electionHandler := handler.NewElectionHandler(electionService, votingService, s.logger)
	resultsHandler := handler.NewResultsHandler(s.streams, electionService, tallyService, s.logger)
	userHandler := handler.NewUserHandler(userService, activityService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Use(auth.CurrentRole(userService.CurrentRole))

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me", authHandler.HandleUpdateMe)
			r.Get("/me/votes", electionHandler.HandleMyVotes)

			r.Get("/elections", electionHandler.HandleList)
			r.Get("/elections/{id}", electionHandler.HandleGet)
			r.Get("/elections/{id}/vote", electionHandler.HandleHasVoted)
			r.Post("/elections/{id}/vote", electionHandler.HandleCastVote)
			r.Get("/elections/{id}/results", resultsHandler.HandleResults)
			r.Get("/elections/{id}/results/live", resultsHandler.HandleLive)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/elections", electionHandler.HandleCreate)
				r.Put("/elections/{id}", electionHandler.HandleUpdate)
				r.Delete("/elections/{id}", electionHandler.HandleDelete)

				r.Get("/users", userHandler.HandleList)
				r.Patch("/users/{id}", userHandler.HandleUpdate)
				r.Delete("/users/{id}", userHandler.HandleDelete)

				r.Get("/activity", userHandler.HandleActivity)
			})
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. End live result streams
//  3. Wait for in-flight requests to finish (30s timeout)
//  4. Close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()
	defer s.endStreams()

	// No WriteTimeout: it would cut live websocket streams. Each websocket
	// write sets its own deadline instead.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.Store),
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

		s.endStreams()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
