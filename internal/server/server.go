package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Orchestrator is the part of the cycle orchestrator the server drives.
type Orchestrator interface {
	Trigger(ctx context.Context, req cycle.Request) (*cycle.Result, error)
	State() cycle.State
	Last() *cycle.Result
}

// Server exposes status, metrics, manual triggers and a live result feed.
type Server struct {
	orch        Orchestrator
	hub         *Hub
	info        func() map[string]any
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	started     time.Time
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// Trigger limits per client; zero disables a limit.
	RequestsPerMinute int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Option customises a Server.
type Option func(*Server)

// WithInfo adds a pipeline description to /health.
func WithInfo(fn func() map[string]any) Option {
	return func(s *Server) { s.info = fn }
}

// New creates a server around orch. hub is usually also registered as a
// cycle sink so that every emitted result reaches websocket clients.
func New(cfg Config, orch Orchestrator, hub *Hub, opts ...Option) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		orch:        orch,
		hub:         hub,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		started:     time.Now(),
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute > 0 || cfg.MaxRequestsPerDay > 0 || cfg.MaxDataPerDay > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.MaxRequestsPerDay, cfg.MaxDataPerDay)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.route("health", s.healthHandler))
	mux.HandleFunc("/status", s.route("status", s.statusHandler))
	mux.HandleFunc("/cycle", s.route("cycle", s.withRateLimit(s.cycleHandler)))
	mux.HandleFunc("/ws", s.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// Close disconnects websocket clients.
func (s *Server) Close() error {
	s.hub.Close()
	return nil
}
