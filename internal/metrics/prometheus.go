package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the catalog service.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cacheLookups       *prometheus.CounterVec
	cacheStoreErrors   *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	cacheKeysPurged    *prometheus.CounterVec

	searchDuration *prometheus.HistogramVec
	searchResults  *prometheus.HistogramVec

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	rateLimitDecisions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// Default histogram buckets for latencies (in seconds)
var defaultBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem. Calling it
// again replaces the registry, which tests rely on.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by key family and outcome (hit, miss, error)",
			},
			[]string{"family", "outcome"},
		),

		cacheStoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_store_errors_total",
				Help:      "Cache backend errors absorbed by the read path, by operation",
			},
			[]string{"op"},
		),

		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Prefix invalidations by prefix and result",
			},
			[]string{"prefix", "result"},
		),

		cacheKeysPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_keys_purged_total",
				Help:      "Cache keys removed by prefix invalidation",
			},
			[]string{"prefix"},
		),

		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search strategy latency",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),

		searchResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of results returned per search",
				Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
			},
			[]string{"kind"},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   buckets,
			},
			[]string{"method", "route"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_active_requests",
				Help:      "In-flight HTTP requests",
			},
		),

		rateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limit checks by result (allowed, limited, error)",
			},
			[]string{"result"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_breaker_state",
				Help:      "Cache circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		pm.cacheLookups,
		pm.cacheStoreErrors,
		pm.cacheInvalidations,
		pm.cacheKeysPurged,
		pm.searchDuration,
		pm.searchResults,
		pm.httpRequests,
		pm.httpDuration,
		pm.activeRequests,
		pm.rateLimitDecisions,
		pm.breakerState,
	)

	promMetrics = pm
}

// RecordCacheLookup counts a lookup outcome for a key family.
func RecordCacheLookup(family, outcome string) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheLookups.WithLabelValues(family, outcome).Inc()
}

// RecordCacheError counts an absorbed cache backend error.
// op: get, set, delete_prefix
func RecordCacheError(op string) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheStoreErrors.WithLabelValues(op).Inc()
}

// RecordInvalidation records one prefix purge.
func RecordInvalidation(prefix string, purged int, err error) {
	if promMetrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	promMetrics.cacheInvalidations.WithLabelValues(prefix, result).Inc()
	if purged > 0 {
		promMetrics.cacheKeysPurged.WithLabelValues(prefix).Add(float64(purged))
	}
}

// RecordSearch records a search strategy execution.
func RecordSearch(kind string, d time.Duration, results int) {
	if promMetrics == nil {
		return
	}
	promMetrics.searchDuration.WithLabelValues(kind).Observe(d.Seconds())
	promMetrics.searchResults.WithLabelValues(kind).Observe(float64(results))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	promMetrics.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncActiveRequests increments the active requests gauge
func IncActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Inc()
}

// DecActiveRequests decrements the active requests gauge
func DecActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Dec()
}

// RecordRateLimit counts one rate limit decision.
func RecordRateLimit(result string) {
	if promMetrics == nil {
		return
	}
	promMetrics.rateLimitDecisions.WithLabelValues(result).Inc()
}

// SetBreakerState publishes a cache breaker state.
func SetBreakerState(cache string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.breakerState.WithLabelValues(cache).Set(float64(state))
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
