package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the feed cache, and sync replay outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	replayTotal     *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	replayTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_replay_total",
		Help: "Replayed offline mutations by kind and outcome",
	}, []string{"kind", "result"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_cache_hits_total",
		Help: "Total assignment feed cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_cache_misses_total",
		Help: "Total assignment feed cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, replayTotal, cacheHits, cacheMisses)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		replayTotal:     replayTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveReplay records the outcome of one replayed mutation.
func (m *MetricsService) ObserveReplay(kind models.MutationKind, result string) {
	if m == nil {
		return
	}
	m.replayTotal.WithLabelValues(string(kind), result).Inc()
}

// CacheHit increments the feed cache hit counter.
func (m *MetricsService) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss increments the feed cache miss counter.
func (m *MetricsService) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}
