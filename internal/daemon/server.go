// Package daemon exposes the quiz agent over HTTP.
package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/agent"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/logging"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
)

const (
	acceptedStatus = "Job accepted and processing in background."
	rootMessage    = "Hello World. LLM Analysis Quiz agent is standing by."
)

// Server hosts the task intake endpoint plus liveness and metrics.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	metrics    *observability.Metrics
	dispatcher *Dispatcher
	cleanup    func() error
}

// NewServer wires a Supervisor from cfg behind the HTTP endpoints.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	metrics := observability.NewMetrics()
	supervisor, cleanup, err := agent.NewFromConfig(cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}
	s := newServer(cfg.Server, supervisor, cfg.Agent.ChainTimeout, logger, metrics)
	s.cleanup = cleanup
	return s, nil
}

func newServer(cfg config.ServerConfig, runner Runner, chainTimeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		dispatcher: NewDispatcher(runner, cfg.MaxConcurrentChains, chainTimeout, logging.Component(logger, "dispatcher"), metrics),
	}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.rootHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /quiz", s.quizHandler)
	mux.HandleFunc("GET /metrics", s.metricsHandler)
	mux.Handle("GET /tools/schemas", SchemaHandler{})

	if s.cfg.H2C {
		return h2c.NewHandler(mux, &http2.Server{})
	}
	return mux
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting quiz agent daemon", zap.String("addr", s.cfg.Addr), zap.Bool("h2c", s.cfg.H2C))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down quiz agent daemon")
	case err := <-errCh:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("task chains still running at shutdown", zap.Error(err))
	}
	if s.cleanup != nil {
		if err := s.cleanup(); err != nil {
			s.logger.Warn("closing browser", zap.Error(err))
		}
	}
	return runErr
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) quizHandler(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	req, err := decodeTaskRequest(body)
	if err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			s.metrics.RecordRejection("invalid")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": verr.fields})
			return
		}
		s.metrics.RecordRejection("malformed")
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON body."})
		return
	}

	if s.cfg.Secret == "" {
		s.logger.Error("rejecting task: no secret configured")
		s.metrics.RecordRejection("unconfigured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Server not configured."})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.Secret)) != 1 {
		s.logger.Warn("rejecting task: invalid secret", zap.String("email", req.Email))
		s.metrics.RecordRejection("forbidden")
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Invalid secret."})
		return
	}

	s.logger.Info("task accepted", zap.String("email", req.Email), zap.String("url", req.URL))
	s.dispatcher.Dispatch(req)
	writeJSON(w, http.StatusOK, map[string]string{"status": acceptedStatus})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.MetricsEnabled || s.metrics == nil {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
