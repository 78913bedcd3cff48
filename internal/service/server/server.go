package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/port"
	"github.com/vertextoedge/frame-viewer/internal/service/cacher"
	"github.com/vertextoedge/frame-viewer/internal/service/playback"
	"github.com/vertextoedge/frame-viewer/internal/service/realtime"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr      string
	AdminUsername string
	AdminPassword string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Player is the playback loop as seen by the server
type Player interface {
	Status() playback.Status
	Command(c port.Command) bool
}

// CacheInfo reports asset cache usage
type CacheInfo interface {
	Stats() cacher.Stats
	DiskUsage() (*port.DiskUsage, error)
}

// Realtime reports the subscription state
type Realtime interface {
	State() realtime.State
}

// Pinger checks a backing store
type Pinger interface {
	Ping() error
}

// Deps are the components the server reports on. Realtime and Store may be nil.
type Deps struct {
	Player   Player
	Cache    CacheInfo
	Realtime Realtime
	Store    Pinger
}

// Server represents the diagnostics and control HTTP server
type Server struct {
	config         *Config
	deps           Deps
	logger         *zap.Logger
	server         *http.Server
	debugHandler   *DebugHandler
	controlHandler *ControlHandler
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	s.debugHandler = NewDebugHandler(deps, logger)
	s.controlHandler = NewControlHandler(deps.Player, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/stats", s.debugHandler.HandleStats)
	mux.Handle("/metrics", promhttp.Handler())

	control := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if cfg.AdminPassword != "" {
		control = BasicAuthMiddleware(cfg.AdminUsername, cfg.AdminPassword, logger)
	}
	mux.HandleFunc("/control/next", control(s.controlHandler.HandleNext))
	mux.HandleFunc("/control/previous", control(s.controlHandler.HandlePrevious))
	mux.HandleFunc("/control/pause", control(s.controlHandler.HandlePause))

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Offline bool   `json:"offline"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "Recency store unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	resp := healthResponse{
		Status: "healthy",
		Time:   time.Now().Format(time.RFC3339),
	}
	if s.deps.Player != nil {
		resp.Offline = s.deps.Player.Status().Offline
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
