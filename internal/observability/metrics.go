package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bmkg_relay"

// Metrics holds the Prometheus counters, histograms, and gauges for the relay.
type Metrics struct {
	// Cache metrics.
	CacheRequests  *prometheus.CounterVec // labels: tier={remote,local}, result={hit,miss,error}
	CacheFallbacks prometheus.Counter
	CacheRemoteUp  prometheus.Gauge

	// Resolution metrics.
	ResolveTotal     *prometheus.CounterVec   // labels: category, result={hit,miss,coalesced,error}
	UpstreamRequests *prometheus.CounterVec   // labels: category, outcome={success,error,retry}
	UpstreamDuration *prometheus.HistogramVec // labels: category
	ParseErrors      *prometheus.CounterVec   // labels: format
	PublishErrors    prometheus.Counter

	RegionRecords *prometheus.GaugeVec // labels: level

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec   // labels: route, code
	HTTPDuration *prometheus.HistogramVec // labels: route
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		CacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fallbacks_total",
			Help:      "Lookups served by the local tier because the remote tier was unavailable.",
		}),
		CacheRemoteUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_remote_up",
			Help:      "1 when the remote cache tier is healthy, 0 when degraded or disabled.",
		}),
		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Resource resolutions by category and result.",
		}, []string{"category", "result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream BMKG requests by category and outcome.",
		}, []string{"category", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream fetch duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"category"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Upstream payloads rejected by a parser.",
		}, []string{"format"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Change-feed messages that could not be published.",
		}),
		RegionRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_records",
			Help:      "Region records loaded, by level.",
		}, []string{"level"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route pattern.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

// NewMetrics creates and registers all relay metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheRequests,
		m.CacheFallbacks,
		m.CacheRemoteUp,
		m.ResolveTotal,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.ParseErrors,
		m.PublishErrors,
		m.RegionRecords,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
