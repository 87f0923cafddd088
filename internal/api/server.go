package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"push-arena/internal/config"
)

// Server is the relay server: the HTTP API plus the websocket room hub.
type Server struct {
	rooms       *RoomManager
	hub         *RelayHub
	router      *chi.Mux
	rateLimiter *IPRateLimiter

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a relay server.
//
// IMPORTANT: No network listener is opened until Start() is called.
// Tests can wrap Router() in httptest.NewServer instead.
func NewServer(cfg config.ServerConfig, sim config.SimConfig) *Server {
	s := &Server{
		rooms: NewRoomManager(cfg.MaxPlayersPerRoom, sim),
	}
	s.hub = NewRelayHub(s.rooms, cfg)

	// Create rate limiter (we track it for cleanup)
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	s.router = NewRouter(RouterConfig{
		Rooms:       s.rooms,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	// The websocket route needs the hub instance, so it is not part of NewRouter.
	s.router.Get("/ws", s.hub.HandleWebSocket)

	return s
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	log.Printf("🌐 Relay server starting on %s", addr)
	log.Printf("🔌 Participants connect to ws://localhost%s/ws?room=CODE", addr)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Rooms returns the room manager.
func (s *Server) Rooms() *RoomManager {
	return s.rooms
}

// Stop disconnects all participants and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
