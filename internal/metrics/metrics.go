// Package metrics exposes Prometheus instrumentation for the strategy
// pipeline plus the /metrics and /healthz HTTP endpoints.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the strategy worker.
type Metrics struct {
	EventsTotal    *prometheus.CounterVec // labels: stream
	CandlesTotal   prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: action
	ProcessErrors  prometheus.Counter
	AckFailures    prometheus.Counter
	PersistErrors  *prometheus.CounterVec // labels: kind=candle|signal
	DecideDuration prometheus.Histogram
}

func build() *Metrics {
	return &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_events_total",
			Help: "Market events consumed, by source stream",
		}, []string{"stream"}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_candles_total",
			Help: "Candles produced by the aggregator",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_signals_total",
			Help: "Signals emitted, by action",
		}, []string{"action"}),
		ProcessErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_process_errors_total",
			Help: "Events whose decision path failed (publish error or strategy panic)",
		}),
		AckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_ack_failures_total",
			Help: "XACK calls that returned an error",
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_persist_errors_total",
			Help: "Best-effort persistence failures, by record kind",
		}, []string{"kind"}),
		DecideDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strategy_decide_duration_seconds",
			Help:    "Indicator compute plus strategy decision latency per candle",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsTotal,
		m.CandlesTotal,
		m.SignalsTotal,
		m.ProcessErrors,
		m.AckFailures,
		m.PersistErrors,
		m.DecideDuration,
	}
}

// NewMetrics registers all metrics on the default registry and returns them.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// Nop returns metrics backed by a private registry, for tests and callers
// that do not export metrics.
func Nop() *Metrics {
	m := build()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

// HealthCheck probes one dependency. Returning false marks the worker
// degraded on /healthz.
type HealthCheck func(ctx context.Context) bool

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	checks    map[string]HealthCheck
	results   map[string]bool
	startedAt time.Time
	lastCheck time.Time
}

// NewHealthStatus creates an empty health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		checks:    make(map[string]HealthCheck),
		results:   make(map[string]bool),
		startedAt: time.Now(),
	}
}

// Register adds a named dependency check. Safe before the server starts.
func (h *HealthStatus) Register(name string, check HealthCheck) {
	h.mu.Lock()
	h.checks[name] = check
	h.results[name] = true
	h.mu.Unlock()
}

// StartChecker runs the registered probes every interval until ctx ends.
func (h *HealthStatus) StartChecker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.runChecks(ctx)
			}
		}
	}()
}

func (h *HealthStatus) runChecks(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]bool, len(checks))
	for name, c := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		results[name] = c(probeCtx)
		cancel()
	}

	h.mu.Lock()
	for name, ok := range results {
		h.results[name] = ok
	}
	h.lastCheck = time.Now()
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	httpCode := http.StatusOK
	for _, ok := range h.results {
		if !ok {
			overall = "degraded"
			httpCode = http.StatusServiceUnavailable
			break
		}
	}

	status := struct {
		Status      string          `json:"status"`
		Uptime      string          `json:"uptime"`
		Deps        map[string]bool `json:"deps"`
		LastCheckAt string          `json:"last_check_at"`
	}{
		Status:      overall,
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
		Deps:        h.results,
		LastCheckAt: h.lastCheck.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
