// Package server exposes the scoring service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mchmarny/fragility/pkg/data"
	"github.com/mchmarny/fragility/pkg/score"
)

const (
	// PortDefault is the port the server listens on when none is configured.
	PortDefault = 8080
	// AddressDefault binds the server to the loopback interface.
	AddressDefault = "127.0.0.1"

	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	maxBodyBytesDefault       = 1 << 20

	sourceHTTP = "http"
)

// Recorder appends analyses to the audit log.
type Recorder interface {
	SaveAnalysis(ctx context.Context, list ...*data.Analysis) error
}

// Options configures the HTTP service.
type Options struct {
	// Scorer is required.
	Scorer *score.Scorer
	// ModelName is reported in the index and the audit log.
	ModelName string
	// Recorder is optional; without it analyses are not persisted.
	Recorder Recorder
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// MaxBodyBytes caps request bodies, 1MB by default.
	MaxBodyBytes int64
}

// Server routes requests to the scoring service.
type Server struct {
	scorer    *score.Scorer
	modelName string
	recorder  Recorder
	logger    *slog.Logger
	maxBody   int64
	metrics   *metrics
	handler   http.Handler
}

// New creates the service and its router.
func New(opts Options) (*Server, error) {
	if opts.Scorer == nil {
		return nil, errors.New("scorer required")
	}

	s := &Server{
		scorer:    opts.Scorer,
		modelName: opts.ModelName,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		maxBody:   opts.MaxBodyBytes,
		metrics:   newMetrics(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxBody <= 0 {
		s.maxBody = maxBodyBytesDefault
	}

	s.handler = withRequestID(requestLogger(s.logger, s.metrics)(s.makeRouter()))
	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) makeRouter() *http.ServeMux {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /{$}", s.healthHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Scoring API
	mux.HandleFunc("POST /analyze-household", s.analyzeHandler)
	mux.HandleFunc("POST /predict", s.predictHandler)
	mux.HandleFunc("POST /explain", s.explainHandler)
	mux.HandleFunc("POST /weak-links", s.weakLinksHandler)
	mux.HandleFunc("POST /simulate", s.simulateHandler)
	mux.HandleFunc("POST /loan-evaluation", s.loanHandler)

	return mux
}

// ListenAndServe serves on address until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:           address,
		Handler:        s.handler,
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("server started", "address", "http://"+address, "model", s.modelName)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}
