// Package metrics exposes PetraCache's Prometheus counters and the
// health/readiness/metrics HTTP endpoints that serve them.
package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petra/petracache/internal/config"
	"github.com/petra/petracache/internal/logging"
	"github.com/petra/petracache/internal/storage"
)

// Metrics holds every counter/gauge/histogram PetraCache exports, all
// registered on a private Registry rather than the global default one so
// a process can open more than one instance (as tests do) without
// colliding registrations.
type Metrics struct {
	registry *prometheus.Registry

	CmdGet    prometheus.Counter
	CmdSet    prometheus.Counter
	CmdDelete prometheus.Counter

	GetHits   prometheus.Counter
	GetMisses prometheus.Counter

	ActiveConnections   prometheus.Gauge
	TotalConnections    prometheus.Counter
	RejectedConnections prometheus.Counter

	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	CmdLatency prometheus.Histogram

	ProtocolErrors prometheus.Counter
	StorageErrors  prometheus.Counter

	ready atomic.Bool
}

// New builds a Metrics instance with all series registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		CmdGet:    prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_cmd_get_total", Help: "Total GET commands"}),
		CmdSet:    prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_cmd_set_total", Help: "Total SET commands"}),
		CmdDelete: prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_cmd_delete_total", Help: "Total DELETE commands"}),

		GetHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_get_hits_total", Help: "Total GET hits"}),
		GetMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_get_misses_total", Help: "Total GET misses"}),

		ActiveConnections:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "petracache_active_connections", Help: "Current active connections"}),
		TotalConnections:    prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_connections_total", Help: "Total connections accepted"}),
		RejectedConnections: prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_rejected_connections_total", Help: "Total connections rejected"}),

		BytesRead:    prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_bytes_read_total", Help: "Total bytes read"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_bytes_written_total", Help: "Total bytes written"}),

		CmdLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "petracache_cmd_latency_seconds",
			Help:    "Command latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),

		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_protocol_errors_total", Help: "Total protocol errors"}),
		StorageErrors:  prometheus.NewCounter(prometheus.CounterOpts{Name: "petracache_storage_errors_total", Help: "Total storage errors"}),
	}

	registry.MustRegister(
		m.CmdGet, m.CmdSet, m.CmdDelete,
		m.GetHits, m.GetMisses,
		m.ActiveConnections, m.TotalConnections, m.RejectedConnections,
		m.BytesRead, m.BytesWritten,
		m.CmdLatency,
		m.ProtocolErrors, m.StorageErrors,
	)

	return m
}

// SetReady marks whether /readyz should report success.
func (m *Metrics) SetReady(ready bool) {
	m.ready.Store(ready)
}

// IsReady reports the current readiness state.
func (m *Metrics) IsReady() bool {
	return m.ready.Load()
}

// ObserveCommand records one command's latency.
func (m *Metrics) ObserveCommand(d time.Duration) {
	m.CmdLatency.Observe(d.Seconds())
}

// Server exposes /metrics, /healthz, and /readyz over HTTP.
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
}

// NewServer wires the three endpoints onto a new mux.
func NewServer(cfg config.MetricsConfig, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", appendTTLStats(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if m.IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
		}
	})

	return &Server{
		httpServer: &http.Server{Addr: cfg.ListenAddr, Handler: mux},
		metrics:    m,
	}
}

// ListenAndServe blocks serving HTTP until the server is shut down.
// Callers typically run it in its own goroutine.
func (s *Server) ListenAndServe() error {
	logging.Infof("metrics server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// appendTTLStats wraps the promhttp handler so its output is followed by
// the two TTL expiration counters, which live outside the registry (see
// RenderTTLStats).
func appendTTLStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseBuffer{header: make(http.Header)}
		next.ServeHTTP(rec, r)

		for k, values := range rec.header {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		w.WriteHeader(rec.status)
		_, _ = w.Write(rec.body.Bytes())
		_, _ = w.Write([]byte(RenderTTLStats()))
	})
}

type responseBuffer struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *responseBuffer) Header() http.Header        { return r.header }
func (r *responseBuffer) Write(b []byte) (int, error) { return r.body.Write(b) }
func (r *responseBuffer) WriteHeader(statusCode int)  { r.status = statusCode }

// RenderTTLStats formats the two process-wide TTL expiration counters as
// extra plaintext lines appended after the registry's own exposition —
// they live in internal/storage, outside any *Metrics instance, so they
// can be updated by the compaction filter without a circular import.
func RenderTTLStats() string {
	stats := storage.ReadTTLStats()
	return fmt.Sprintf(
		"\n# HELP petracache_lazy_expired_total Keys removed by lazy expiration on GET\n"+
			"# TYPE petracache_lazy_expired_total counter\n"+
			"petracache_lazy_expired_total %d\n\n"+
			"# HELP petracache_ttl_compaction_removed_total Keys removed by the TTL compaction filter\n"+
			"# TYPE petracache_ttl_compaction_removed_total counter\n"+
			"petracache_ttl_compaction_removed_total %d\n",
		stats.LazyExpirationRemoved, stats.CompactionRemoved,
	)
}
