// Package httpapi exposes the model registry and the vector field evaluator
// over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jason9-Alex/Lab-Modelos/internal/config"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
)

const (
	maxBodyBytes = 1 << 20

	KindNotFound   = "not_found"
	KindBadRequest = "bad_request"
	KindInternal   = "internal"
	KindTimeout    = "timeout"
)

type Server struct {
	registry *experiment.Registry
	gatherer prometheus.Gatherer
	log      logging.Logger
	timeout  time.Duration
}

type Option func(*Server)

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTimeout bounds every API request. Requests that run longer get a 503.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func NewServer(r *experiment.Registry, opts ...Option) *Server {
	s := &Server{
		registry: r,
		gatherer: prometheus.DefaultGatherer,
		log:      logging.Noop(),
		timeout:  config.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table. /metrics and /healthz are not subject to
// the request timeout.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/models", s.handleListModels)
	api.HandleFunc("GET /v1/models/{name}", s.handleDescribe)
	api.HandleFunc("POST /v1/models/{name}/run", s.handleRun)
	api.HandleFunc("POST /v1/models/{name}/sweep", s.handleSweep)
	api.HandleFunc("POST /v1/vectorfield", s.handleVectorField)

	timeoutBody := fmt.Sprintf(`{"error":{"kind":%q,"message":"request exceeded %s"}}`, KindTimeout, s.timeout)

	root := http.NewServeMux()
	root.Handle("/v1/", http.TimeoutHandler(api, s.timeout, timeoutBody))
	root.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.withLogging(root)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", logging.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.log.Info(ctx, "http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With(logging.String("method", r.Method), logging.String("path", r.URL.Path))
		ctx := logging.ContextWithLogger(r.Context(), log)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.Debug(ctx, "request served",
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)))
	})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeJSON encodes payload before the status line goes out, so a value
// that cannot be encoded turns into a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body, _ = json.Marshal(map[string]errorBody{"error": {
			Kind:    KindInternal,
			Message: fmt.Sprintf("encode response: %v", err),
		}})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: message}})
}

// writeFailure maps engine errors to status codes: input and expression
// failures are 422, integration failures 500, unknown models 404.
func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, dynamo.KindOf(err)
	switch {
	case errors.Is(err, experiment.ErrUnknownModel):
		status, kind = http.StatusNotFound, KindNotFound
	case errors.Is(err, dynamo.ErrInvalidInput), errors.Is(err, dynamo.ErrExpression):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dynamo.ErrIntegration):
		status = http.StatusInternalServerError
	default:
		kind = KindInternal
	}

	logging.FromContext(ctx).Warn(ctx, "request failed",
		logging.String("kind", kind),
		logging.Int("status", status),
		logging.Err(err))
	writeError(w, status, kind, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}
