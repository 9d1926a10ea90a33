package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ramcherukuri/kineto/internal/diagnostics"
	"github.com/ramcherukuri/kineto/internal/logging"
)

// ServerConfig holds the sample daemon's HTTP configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableCORS      bool
}

// DefaultServerConfig returns the default daemon server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8441,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		EnableCORS:      false,
	}
}

// Server is a reference profiling daemon: it queues on-demand configs for
// delivery to polling processes and tracks per-device GPU context counts.
type Server struct {
	config     ServerConfig
	store      *Store
	logger     *logging.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a daemon server around a store.
func NewServer(cfg ServerConfig, store *Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		config: cfg,
		store:  store,
		logger: logger,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("daemon listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("daemon server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("daemon shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		}).Handler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/on-demand/config", s.handlePollConfig)
		r.Post("/on-demand/config", s.handleQueueConfig)
		r.Get("/gpus", s.handleListGPUs)
		r.Get("/gpus/{device}/contexts", s.handleGetContexts)
		r.Put("/gpus/{device}/contexts", s.handleSetContexts)
		r.Get("/healthz", s.handleHealth)
	})
	return r
}

func (s *Server) handlePollConfig(w http.ResponseWriter, r *http.Request) {
	events := r.URL.Query().Get("events") == "true"
	activities := r.URL.Query().Get("activities") == "true"

	body, err := s.store.NextMatching(r.Context(), events, activities)
	if err != nil {
		s.logger.Error("poll failed", "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if body == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleQueueConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty config", http.StatusBadRequest)
		return
	}

	wantsEvents := r.URL.Query().Get("events") == "true"
	wantsActivities := r.URL.Query().Get("activities") == "true"
	if !wantsEvents && !wantsActivities {
		// Untargeted configs go to whichever poller shows up first.
		wantsEvents, wantsActivities = true, true
	}

	id, err := s.store.Enqueue(r.Context(), string(body), wantsEvents, wantsActivities)
	if err != nil {
		s.logger.Error("enqueue failed", "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	s.logger.Info("on-demand config queued", "request_id", id,
		"events", wantsEvents, "activities", wantsActivities)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"request_id": id})
}

func (s *Server) handleListGPUs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(diagnostics.GPUs())
}

func (s *Server) handleGetContexts(w http.ResponseWriter, r *http.Request) {
	device, err := parseDevice(chi.URLParam(r, "device"))
	if err != nil {
		http.Error(w, "invalid device", http.StatusBadRequest)
		return
	}
	count, err := s.store.GPUContextCountStored(r.Context(), device)
	if err != nil {
		s.logger.Error("context-count lookup failed", "device", device, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"count": count})
}

func (s *Server) handleSetContexts(w http.ResponseWriter, r *http.Request) {
	device, err := parseDevice(chi.URLParam(r, "device"))
	if err != nil {
		http.Error(w, "invalid device", http.StatusBadRequest)
		return
	}
	var in struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Count < 0 {
		http.Error(w, "invalid count", http.StatusBadRequest)
		return
	}
	if err := s.store.SetGPUContextCount(r.Context(), device, in.Count); err != nil {
		s.logger.Error("context-count update failed", "device", device, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pending, err := s.store.PendingCount(r.Context())
	if err != nil {
		s.logger.Error("pending count failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"pending_configs": pending,
		"host":            diagnostics.CollectHost(r.Context()),
	})
}

func parseDevice(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
