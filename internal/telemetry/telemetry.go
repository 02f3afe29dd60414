// Package telemetry records Prometheus metrics for the API and the
// background work behind it.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives measurements. NewRecorder returns a no-op
// implementation when metrics are disabled.
type Recorder interface {
	ObserveRequest(route string, status int, d time.Duration)
	IncCacheHit()
	IncCacheMiss()
	IncRating(ratingType, outcome string)
	ObserveDiscovery(stored int, d time.Duration)
	IncGenerated(mode string, n int)
	Handler() http.Handler
}

type promRecorder struct {
	gatherer          prometheus.Gatherer
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	ratingsTotal      *prometheus.CounterVec
	discoveredTotal   prometheus.Counter
	discoveryDuration prometheus.Histogram
	generatedTotal    *prometheus.CounterVec
}

// NewRecorder creates a recorder registered with reg. A nil reg uses a
// fresh registry.
func NewRecorder(enabled bool, reg *prometheus.Registry) Recorder {
	if !enabled {
		return noop{}
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &promRecorder{
		gatherer: reg,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "folio_metadata_cache_hits_total",
			Help: "Metadata lookups served from cache",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "folio_metadata_cache_misses_total",
			Help: "Metadata lookups that went upstream",
		}),
		ratingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_ratings_total",
			Help: "Training ratings recorded",
		}, []string{"type", "outcome"}),
		discoveredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "folio_suggestions_discovered_total",
			Help: "Training suggestions stored by discovery runs",
		}),
		discoveryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_discovery_duration_seconds",
			Help:    "Duration of discovery runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		generatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_variants_generated_total",
			Help: "Generated title variants",
		}, []string{"mode"}),
	}
}

func (m *promRecorder) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, statusBucket(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *promRecorder) IncCacheHit()  { m.cacheHits.Inc() }
func (m *promRecorder) IncCacheMiss() { m.cacheMisses.Inc() }

func (m *promRecorder) IncRating(ratingType, outcome string) {
	m.ratingsTotal.WithLabelValues(ratingType, outcome).Inc()
}

func (m *promRecorder) ObserveDiscovery(stored int, d time.Duration) {
	m.discoveredTotal.Add(float64(stored))
	m.discoveryDuration.Observe(d.Seconds())
}

func (m *promRecorder) IncGenerated(mode string, n int) {
	if mode == "" {
		mode = "topic"
	}
	m.generatedTotal.WithLabelValues(mode).Add(float64(n))
}

func (m *promRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noop struct{}

func (noop) ObserveRequest(string, int, time.Duration) {}
func (noop) IncCacheHit()                              {}
func (noop) IncCacheMiss()                             {}
func (noop) IncRating(string, string)                  {}
func (noop) ObserveDiscovery(int, time.Duration)       {}
func (noop) IncGenerated(string, int)                  {}
func (noop) Handler() http.Handler                     { return http.NotFoundHandler() }
