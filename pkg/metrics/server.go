package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/ovsdp/internal/logger"
)

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. 0 picks a free port.
	Port int

	// ReadyFunc reports whether the datapath is serving requests. nil means
	// always ready.
	ReadyFunc func() bool

	// SessionsFunc returns a JSON-encodable view of the open sessions for
	// /debug/sessions. nil disables the route.
	SessionsFunc func() any
}

// Server exposes:
//   - GET /metrics: Prometheus exposition of the registry
//   - GET /healthz: 200 when ready, 503 otherwise
//   - GET /debug/sessions: open control sessions as JSON
type Server struct {
	cfg          ServerConfig
	server       *http.Server
	listener     net.Listener
	ready        chan struct{}
	shutdownOnce sync.Once
}

// NewServer returns a stopped server. Call Start to serve.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{cfg: cfg, ready: make(chan struct{})}
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	reg := GetRegistry()
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics disabled", http.StatusNotFound)
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.cfg.ReadyFunc != nil && !s.cfg.ReadyFunc() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.cfg.SessionsFunc != nil {
		r.Get("/debug/sessions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.cfg.SessionsFunc())
		})
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("Metrics request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start))
	})
}

// Start serves until ctx is canceled. It returns nil on a graceful stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		close(s.ready)
		return fmt.Errorf("metrics server listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if e := s.server.Shutdown(ctx); e != nil {
			err = fmt.Errorf("metrics server shutdown: %w", e)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return err
}

// Addr blocks until Start has bound the listener and returns its address,
// or "" if binding failed.
func (s *Server) Addr() string {
	<-s.ready
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
