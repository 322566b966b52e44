package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/internal/config"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server exposes the read-only query surface over the opportunity store plus
// a WebSocket feed of lifecycle events
type Server struct {
	config          *config.Config
	server          *http.Server
	handlers        *Handlers
	rateLimiter     *RateLimiter
	websocketServer *WebSocketServer
	startTime       time.Time
}

// NewServer creates the API server
func NewServer(
	cfg *config.Config,
	store interfaces.OpportunityStore,
	risk interfaces.RiskEngine,
	bus interfaces.EventBus,
) *Server {
	server := &Server{
		config:          cfg,
		handlers:        NewHandlers(store, risk),
		rateLimiter:     NewRateLimiter(),
		websocketServer: NewWebSocketServer(bus),
		startTime:       time.Now(),
	}
	server.setupServer()
	return server
}

// Start starts the HTTP listener and the WebSocket feed
func (s *Server) Start(ctx context.Context) error {
	log.Printf("api: starting on %s:%d", s.config.Server.Host, s.config.Server.Port)

	s.websocketServer.Start(ctx)
	go s.rateLimiterCleanup(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("api: server error: %v", err)
		}
	}()
	return nil
}

// Stop drains connections and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.websocketServer.Stop()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	log.Println("api: stopped")
	return nil
}

// GetRouter returns the HTTP handler, exposed for tests
func (s *Server) GetRouter() http.Handler {
	return s.server.Handler
}

// setupServer configures the HTTP server and routes
func (s *Server) setupServer() {
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	router.Use(s.loggingMiddleware)
	router.Use(s.rateLimiter.Middleware)

	router.HandleFunc("/health", s.healthCheck).Methods("GET")
	router.Handle("/metrics", metrics.PrometheusHandler()).Methods("GET")
	router.HandleFunc("/ws", s.websocketServer.HandleWebSocket)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/opportunities", s.handlers.GetOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/{id}", s.handlers.GetOpportunityByID).Methods("GET")
	api.HandleFunc("/symbols", s.handlers.GetSymbols).Methods("GET")
	api.HandleFunc("/stats", s.handlers.GetStats).Methods("GET")

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
}

// healthCheck reports liveness plus basic feed state
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":            "healthy",
		"timestamp":         time.Now(),
		"uptime":            time.Since(s.startTime).String(),
		"websocket_clients": s.websocketServer.ConnectedClients(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("api: encode health response: %v", err)
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		log.Printf("%s %s %d %v %s",
			r.Method, r.RequestURI, wrapper.statusCode, time.Since(start), r.RemoteAddr)
	})
}

// rateLimiterCleanup periodically drops idle client buckets
func (s *Server) rateLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.CleanupExpiredClients()
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
