// Package web serves the JSON control API and the Prometheus endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camuig/strategy-trader/internal/bot"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/metrics"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	svc        *bot.Service
	port       int
	logger     *logger.Logger

	// runCtx bounds the scheduler started through the API; it outlives requests.
	runCtx context.Context
}

func NewServer(ctx context.Context, svc *bot.Service, port int, log *logger.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		port:   port,
		logger: log.Component("web"),
		runCtx: ctx,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(svc.Tracker(), svc.Scheduler()),
		collectors.NewGoCollector(),
	)
	s.routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

func (s *Server) routes(metricsHandler http.Handler) {
	s.router.Use(s.requestID, s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/cycle", s.handleCycle).Methods(http.MethodPost)
	api.HandleFunc("/buy", s.handleBuy).Methods(http.MethodPost)
	api.HandleFunc("/sell", s.handleSell).Methods(http.MethodPost)
	api.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPut)
	api.HandleFunc("/schedule", s.handleGetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/schedule", s.handleUpdateSchedule).Methods(http.MethodPut)
	api.HandleFunc("/strategies", s.handleStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{name}", s.handleUpdateStrategy).Methods(http.MethodPut)
	api.HandleFunc("/strategies/{name}", s.handleRemoveStrategy).Methods(http.MethodDelete)
	api.HandleFunc("/metrics/reset", s.handleResetMetrics).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	s.router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"id", w.Header().Get("X-Request-ID"), "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
