package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/coin-pulse/internal/cache"
	"github.com/coin-pulse/internal/messaging"
	"github.com/coin-pulse/internal/session"
	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/internal/websocket"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/logger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	loc        *time.Location

	// Dependencies
	snapshot synchronizer.PageFetcher
	series   synchronizer.SeriesSource
	sessions *session.Manager
	bridge   *websocket.TickerBridge
	store    cache.Store
	nats     *messaging.TickPublisher
}

// NewServer creates a new API server. nats may be nil.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	snapshot synchronizer.PageFetcher,
	series synchronizer.SeriesSource,
	sessions *session.Manager,
	bridge *websocket.TickerBridge,
	store cache.Store,
	nats *messaging.TickPublisher,
	loc *time.Location,
) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		loc:      loc,
		snapshot: snapshot,
		series:   series,
		sessions: sessions,
		bridge:   bridge,
		store:    store,
		nats:     nats,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Snapshot endpoints
	apiV1.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	apiV1.HandleFunc("/assets/{symbol}/chart", s.handleGetChart).Methods("GET")

	// Live ticks
	apiV1.HandleFunc("/ws/ticker/{symbol}", s.handleTickerSocket).Methods("GET")

	// Session endpoints
	apiV1.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	apiV1.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	apiV1.HandleFunc("/sessions/{id}/assets", s.handleSessionAssets).Methods("GET")
	apiV1.HandleFunc("/sessions/{id}/assets/more", s.handleSessionLoadMore).Methods("POST")
	apiV1.HandleFunc("/sessions/{id}/assets/{symbol}", s.handleSessionDetail).Methods("GET")
	apiV1.HandleFunc("/sessions/{id}/assets/{symbol}/timeframe", s.handleSessionTimeFrame).Methods("PUT")
	apiV1.HandleFunc("/sessions/{id}/assets/{symbol}/select", s.handleSessionSelect).Methods("POST")
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, use a different port: --port %d", s.cfg.Server.Port, s.cfg.Server.Port+1)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// healthChecker is implemented by stores backed by a remote service
type healthChecker interface {
	Health(ctx context.Context) error
}

// handleHealth reports the state of the optional backing services
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]bool{
		"nats": s.nats != nil && s.nats.IsConnected(),
	}
	if hc, ok := s.store.(healthChecker); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		services["redis"] = hc.Health(ctx) == nil
		cancel()
	}

	health := map[string]interface{}{
		"status":     "healthy",
		"services":   services,
		"sessions":   s.sessions.GetStats(),
		"goroutines": runtime.NumGoroutine(),
		"timestamp":  time.Now().Unix(),
	}
	if s.bridge != nil {
		health["websocket_clients"] = s.bridge.GetConnectionCount()
	}

	s.writeJSON(w, http.StatusOK, health)
}

// handleTickerSocket streams normalized ticks for one symbol
func (s *Server) handleTickerSocket(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		s.writeError(w, http.StatusServiceUnavailable, "live prices unavailable")
		return
	}
	s.bridge.HandleTicker(w, r, mux.Vars(r)["symbol"])
}

// Helper methods for HTTP responses
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
