// Package server provides the HTTP server and routing for tierledger.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/events"
	ledgerhandlers "github.com/aristath/tierledger/internal/modules/ledger/handlers"
	settingshandlers "github.com/aristath/tierledger/internal/modules/settings/handlers"
	"github.com/aristath/tierledger/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Service  *core.Service
	EventBus *events.Bus
	LedgerDB *database.DB
	ConfigDB *database.DB
	Port     int
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	service        *core.Service
	eventBus       *events.Bus
	systemHandlers *SystemHandlers
	port           int
	devMode        bool
	log            zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		service:  cfg.Service,
		eventBus: cfg.EventBus,
		port:     cfg.Port,
		devMode:  cfg.DevMode,
		log:      cfg.Log.With().Str("component", "server").Logger(),
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, map[string]*database.DB{
		"ledger": cfg.LedgerDB,
		"config": cfg.ConfigDB,
	})

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via API
func (s *Server) SetJobs(jobs ...scheduler.Job) {
	s.systemHandlers.SetJobs(jobs...)
}

// Handler returns the root handler (used by tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event feeds are long-lived: no timeout or compression
		eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)
		r.Get("/events/ws", NewEventsWebSocketHandler(s.eventBus, s.log).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.devMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/health", s.handleHealth)

			r.Get("/clock", s.handleGetClock)
			r.Post("/clock/advance", s.handleAdvanceClock)
			r.Post("/cycles/{month}/run", s.handleRunCycle)

			ledgerhandlers.NewHandler(s.service, s.log).RegisterRoutes(r)
			settingshandlers.NewHandler(s.service, s.log).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/databases", s.systemHandlers.HandleDatabaseStats)
				r.Get("/resources", s.systemHandlers.HandleResources)
				r.Get("/jobs", s.systemHandlers.HandleJobs)
				r.Post("/jobs/{name}/run", s.systemHandlers.HandleTriggerJob)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
