package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "territory"

// Census lookup results.
const (
	CensusResultSuccess = "success"
	CensusResultFailure = "failure"
)

// Cache tiers and results.
const (
	CacheTierMemory = "memory"
	CacheTierRedis  = "redis"

	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing,
// so components can be built without instrumentation in tests.
type Metrics struct {
	registry prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	panics        prometheus.Counter
	toggles       *prometheus.CounterVec
	censusLookups *prometheus.CounterVec
	censusLatency prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	territories   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		registry: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_total",
			Help:      "Total panics recovered by the HTTP middleware.",
		}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_toggles_total",
			Help:      "Total unit toggles by outcome.",
		}, []string{"outcome"}),
		censusLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "census_lookups_total",
			Help:      "Total Census statistics lookups by result.",
		}, []string{"result"}),
		censusLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "census_lookup_duration_seconds",
			Help:      "Census statistics lookup duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_lookups_total",
			Help:      "Statistics cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		territories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "territories",
			Help:      "Number of territories currently defined.",
		}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.panics,
		m.toggles,
		m.censusLookups,
		m.censusLatency,
		m.cacheLookups,
		m.territories,
	)
	return m
}

// Handler exposes the registered metrics for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// PanicRecovered counts a recovered handler panic.
func (m *Metrics) PanicRecovered() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

// ToggleOutcome counts a unit toggle by its outcome.
func (m *Metrics) ToggleOutcome(outcome string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(outcome).Inc()
}

// CensusLookup records a Census API call.
func (m *Metrics) CensusLookup(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.censusLookups.WithLabelValues(result).Inc()
	m.censusLatency.Observe(elapsed.Seconds())
}

// CacheLookup records a statistics cache probe.
func (m *Metrics) CacheLookup(tier, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(tier, result).Inc()
}

// SetTerritories updates the territory gauge.
func (m *Metrics) SetTerritories(n int) {
	if m == nil {
		return
	}
	m.territories.Set(float64(n))
}
