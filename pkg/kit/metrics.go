package kit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelService = "service"
	labelMethod  = "method"
	labelPath    = "path"
	labelStatus  = "status"

	defaultStatusCode = http.StatusOK
)

type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{labelService, labelMethod, labelPath, labelStatus},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP latency",
			},
			[]string{labelService, labelMethod, labelPath},
		),
	}

	reg.MustRegister(m.Requests, m.Latency)
	return m
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (m *Metrics) Middleware(service string, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{
				ResponseWriter: w,
				status:         defaultStatusCode,
			}

			start := time.Now()
			next.ServeHTTP(sw, r)

			path := pathLabel(r)
			m.Latency.WithLabelValues(service, r.Method, path).
				Observe(time.Since(start).Seconds())

			m.Requests.WithLabelValues(service, r.Method, path, strconv.Itoa(sw.status)).
				Inc()
		})
	}
}

func ChiRoutePatternOrPath(r *http.Request) string {
	if rp := chi.RouteContext(r.Context()).RoutePattern(); rp != "" {
		return rp
	}
	return r.URL.Path
}

// IndexMetrics instruments the in-memory index layer: catalog cache
// traffic, rebuilds, order queue depth, and live sessions. All methods are
// nil-safe so components can run without a registry (tests, tooling).
type IndexMetrics struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	rebuilds prometheus.Counter
	queue    prometheus.Gauge
	sessions prometheus.Gauge
}

func NewIndexMetrics(reg *prometheus.Registry) *IndexMetrics {
	m := &IndexMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_index_hits_total",
			Help: "Product lookups answered from the index",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_index_misses_total",
			Help: "Product lookups that fell through to the record store",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_index_rebuilds_total",
			Help: "Full index rebuilds, including warm-up",
		}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "order_queue_depth",
			Help: "Orders currently awaiting processing",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Sessions currently held in memory",
		}),
	}

	reg.MustRegister(m.hits, m.misses, m.rebuilds, m.queue, m.sessions)
	return m
}

func (m *IndexMetrics) CacheHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *IndexMetrics) CacheMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *IndexMetrics) RebuildDone() {
	if m != nil {
		m.rebuilds.Inc()
	}
}

func (m *IndexMetrics) SetQueueDepth(n int) {
	if m != nil {
		m.queue.Set(float64(n))
	}
}

func (m *IndexMetrics) SetActiveSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}
