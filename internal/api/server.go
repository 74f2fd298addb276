// Package api serves the solve pipeline over HTTP: instance submission, run
// lookup, LP and report downloads, and run events over SSE and WebSocket.
package api

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"evdarp/internal/config"
	"evdarp/internal/metrics"
	"evdarp/internal/planner"
	"evdarp/internal/store"
	"evdarp/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Broker   EventBroker
	Planner  *planner.Planner
	Limiter  *rate.Limiter
	Config   config.Config
	// Webhooks is nil unless a webhook URL is configured.
	Webhooks *webhooks.Worker

	wg sync.WaitGroup
}

// Wait blocks until background solves started by async requests finish.
func (s *Server) Wait() { s.wg.Wait() }

// Close flushes pending webhooks and releases the store and broker.
func (s *Server) Close() {
	if s.Webhooks != nil {
		s.Webhooks.Close()
	}
	for _, dep := range []any{s.Broker, s.Store} {
		if c, ok := dep.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

// NewServer wires the store, broker and planner from cfg. Without
// DATABASE_URL runs are kept in memory; without REDIS_URL events stay in
// process.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.InitSchema(context.Background()); err != nil {
			return nil, err
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-process events: %v", err)
		}
	}
	pubs := planner.Publishers{broker}
	var hooks *webhooks.Worker
	if cfg.WebhookURL != "" {
		hooks = webhooks.NewWorker(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookMaxAttempts)
		hooks.Start()
		pubs = append(pubs, hooks)
	}
	metrics.RegisterDefault()
	p := planner.New(cfg.NewSolver(), planner.WithStore(s), planner.WithPublisher(pubs), planner.WithMetrics())
	return &Server{
		Store:    s,
		Broker:   broker,
		Planner:  p,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		Config:   cfg,
		Webhooks: hooks,
	}, nil
}

// Routes returns the service mux wrapped in logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/solve", s.SolveHandler)
	mux.HandleFunc("GET /v1/runs", s.RunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunHandler)
	mux.HandleFunc("DELETE /v1/runs/{id}", s.DeleteRunHandler)
	mux.HandleFunc("GET /v1/runs/{id}/lp", s.RunLPHandler)
	mux.HandleFunc("GET /v1/runs/{id}/report", s.RunReportHandler)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.RunEventsHandler)
	mux.HandleFunc("GET /v1/runs/{id}/ws", s.RunEventsWSHandler)

	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /version", s.VersionHandler)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return logMiddleware(mux)
}

// statusWriter records the response code and passes streaming interfaces
// through to the underlying writer.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: hijack unsupported")
	}
	return h.Hijack()
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(sw.code)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.code, dur)
	})
}
