// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
	"github.com/aleister1102/eventextract/internal/metrics"
	"github.com/aleister1102/eventextract/internal/models"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// ExtractionRunner executes one extraction request.
type ExtractionRunner interface {
	Run(ctx context.Context, requestID string, req models.ExtractionRequest) (models.ExtractionResult, error)
}

// ReadinessChecker reports whether new work can be accepted.
type ReadinessChecker interface {
	Ready() error
}

// Server is the HTTP front end of the extraction service.
type Server struct {
	config    config.ServerConfig
	runner    ExtractionRunner
	readiness []ReadinessChecker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// HealthResponse is the body of the probe endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Reason    string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type requestIDKey struct{}

// NewServer creates a Server. Every readiness checker must pass for /ready to report 200.
func NewServer(cfg config.ServerConfig, runner ExtractionRunner, m *metrics.Metrics, logger zerolog.Logger, readiness ...ReadinessChecker) *Server {
	return &Server{
		config:    cfg,
		runner:    runner,
		readiness: readiness,
		metrics:   m,
		logger:    logger.With().Str("component", "Server").Logger(),
		now:       time.Now,
	}
}

// Handler returns the routed handler with request ID and access logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("GET /health", s.probe("healthy", false))
	mux.HandleFunc("GET /live", s.probe("alive", false))
	mux.HandleFunc("GET /ready", s.probe("ready", true))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return s.withRequestID(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to listen on "+s.config.Addr)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:      h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadTimeout:  time.Duration(s.config.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Msg("HTTP server listening")
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errorwrapper.WrapError(err, "graceful shutdown failed")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	var req models.ExtractionRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body: " + err.Error()})
		return
	}

	result, err := s.runner.Run(r.Context(), requestID, req)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, errorwrapper.ErrInvalidInput):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, errorwrapper.ErrRenderBackendUnavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, result)
	default:
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("Extraction failed unexpectedly")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) probe(status string, checkReadiness bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    status,
			Timestamp: s.now().UTC().Format(time.RFC3339),
			Version:   s.config.Version,
		}
		if checkReadiness {
			for _, checker := range s.readiness {
				if err := checker.Ready(); err != nil {
					resp.Status = "not_ready"
					resp.Reason = err.Error()
					s.writeJSON(w, http.StatusServiceUnavailable, resp)
					return
				}
			}
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "eventextract",
		"version": s.config.Version,
		"extract": "POST /extract",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// withRequestID propagates or assigns X-Request-ID and logs each request.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		started := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("HTTP request")
	})
}

// RequestID returns the request ID assigned by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
