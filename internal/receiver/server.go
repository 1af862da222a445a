// Package receiver accepts live sensor readings over HTTP and exposes the
// engine's state, its recent notifications and Prometheus metrics.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nixlim/growwatch/internal/events"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/metrics"
	"github.com/nixlim/growwatch/internal/sensor"
	"github.com/nixlim/growwatch/internal/storage"
	"github.com/nixlim/growwatch/internal/supervisor"
)

// maxBodySize caps a readings upload.
const maxBodySize = 4 << 20

// Ingestor validates and pushes readings.
type Ingestor interface {
	Push(reading sensor.SensorValue) bool
	Rejected() uint64
}

// Engine exposes read-only supervisor state.
type Engine interface {
	Snapshot() supervisor.Snapshot
	Stats() supervisor.Stats
}

// Feed lists the most recent notifications, oldest first.
type Feed interface {
	Recent(limit int) []events.Entry
}

// History queries stored alerts.
type History interface {
	QueryAlertHistory(days int, rule string) []storage.AlertRecord
	QueryDailySummaries(days int) []storage.DailySummary
	DroppedWrites() int64
}

// Server is the live ingestion endpoint.
type Server struct {
	addr     string
	ingestor Ingestor
	engine   Engine
	feed     Feed
	history  History
	readings ReadingLogger
	log      zerolog.Logger

	router   chi.Router
	listener net.Listener
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory enables /v1/history and /v1/summaries.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithReadingLogger records every posted reading.
func WithReadingLogger(l ReadingLogger) Option {
	return func(s *Server) { s.readings = l }
}

// NewServer builds a server listening on addr once started.
func NewServer(addr string, ingestor Ingestor, engine Engine, feed Feed, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		ingestor: ingestor,
		engine:   engine,
		feed:     feed,
		readings: NopLogger{},
		log:      logger.WithComponent("receiver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.metricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/readings", s.handleReadings)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/status", s.handleStatus)
		if s.history != nil {
			r.Get("/history", s.handleHistory)
			r.Get("/summaries", s.handleSummaries)
		}
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = lis
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	s.log.Info().Str("addr", lis.Addr().String()).Msg("receiver listening")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests by route pattern so path parameters
// and unknown paths do not explode label cardinality.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
