package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry           *prometheus.Registry
	httpRequests       *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
	backendRequests    *prometheus.CounterVec
	backendLatency     *prometheus.HistogramVec
	fallbacksTotal     prometheus.Counter
	surfaceMounts      prometheus.Counter
	staleAnchors       prometheus.Counter
	liveSurfaces       prometheus.Gauge
	historyPruned      prometheus.Counter
}

// New creates a fresh Metrics registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests served by surveyor-view",
	}, []string{"method", "path", "status"})

	httpRequestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surveyor",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by surveyor-view",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	backendRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "backend_requests_total",
		Help:      "Requests issued to the assessment backend",
	}, []string{"endpoint", "status"})

	backendLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surveyor",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of assessment backend requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"endpoint"})

	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "assessment_fallbacks_total",
		Help:      "Authenticated assessments that fell back to the anonymous endpoint",
	})

	surfaceMounts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "map_surface_mounts_total",
		Help:      "Map surfaces created",
	})

	staleAnchors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "map_surface_stale_anchor_recoveries_total",
		Help:      "Mounts that had to strip a stale surface identifier from their anchor",
	})

	liveSurfaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "surveyor",
		Name:      "map_surfaces_live",
		Help:      "Map surfaces currently mounted",
	})

	historyPruned := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "surveyor",
		Name:      "history_pruned_total",
		Help:      "Assessment history rows removed by the retention worker",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestLatency,
		backendRequests,
		backendLatency,
		fallbacksTotal,
		surfaceMounts,
		staleAnchors,
		liveSurfaces,
		historyPruned,
	)

	return &Metrics{
		registry:           registry,
		httpRequests:       httpRequests,
		httpRequestLatency: httpRequestLatency,
		backendRequests:    backendRequests,
		backendLatency:     backendLatency,
		fallbacksTotal:     fallbacksTotal,
		surfaceMounts:      surfaceMounts,
		staleAnchors:       staleAnchors,
		liveSurfaces:       liveSurfaces,
		historyPruned:      historyPruned,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestLatency.With(labels).Observe(duration.Seconds())
}

// ObserveBackendRequest records one call to the assessment backend. A zero status means
// the transport failed before a response arrived.
func (m *Metrics) ObserveBackendRequest(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.backendRequests.With(prometheus.Labels{"endpoint": endpoint, "status": code}).Inc()
	m.backendLatency.With(prometheus.Labels{"endpoint": endpoint}).Observe(duration.Seconds())
}

func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.fallbacksTotal.Inc()
}

func (m *Metrics) SurfaceMounted(staleAnchor bool) {
	if m == nil {
		return
	}
	m.surfaceMounts.Inc()
	m.liveSurfaces.Inc()
	if staleAnchor {
		m.staleAnchors.Inc()
	}
}

func (m *Metrics) SurfaceDisposed() {
	if m == nil {
		return
	}
	m.liveSurfaces.Dec()
}

func (m *Metrics) AddHistoryPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.historyPruned.Add(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
