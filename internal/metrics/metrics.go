// Package metrics exports retrieval pipeline metrics in Prometheus format.
//
// A *Metrics value is owned by the composition root and handed to each
// component. All recording methods are no-ops on a nil receiver so components
// can be constructed without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scriptrag"

// Metrics holds the collectors for one process
type Metrics struct {
	registry *prometheus.Registry

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerRetries prometheus.Counter
	itemsEmbedded   prometheus.Counter
	itemErrors      prometheus.Counter

	searchLatency  *prometheus.HistogramVec
	sourceFailures *prometheus.CounterVec
}

// Config configures the collectors
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// New creates and registers all collectors
func New(cfg Config) *Metrics {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Embedding cache hits by layer.",
		}, []string{"layer"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Embedding cache misses by model.",
		}, []string{"model"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Embedding provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   cfg.LatencyBuckets,
		}, []string{"provider"}),
		providerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retried embedding provider calls.",
		}),
		itemsEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_embedded_total",
			Help:      "Batch items that produced a vector.",
		}),
		itemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Batch items that produced an error result.",
		}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_source_duration_seconds",
			Help:      "Search latency per result source.",
			Buckets:   cfg.LatencyBuckets,
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_source_failures_total",
			Help:      "Search sources dropped from the merge because they failed.",
		}, []string{"source"}),
	}

	registry.MustRegister(
		m.cacheHits, m.cacheMisses,
		m.providerCalls, m.providerLatency, m.providerRetries,
		m.itemsEmbedded, m.itemErrors,
		m.searchLatency, m.sourceFailures,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheHit records a hit in the "memory" or "durable" layer
func (m *Metrics) CacheHit(layer string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(layer).Inc()
}

// CacheMiss records a miss for model
func (m *Metrics) CacheMiss(model string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(model).Inc()
}

// ProviderCall records one provider call and its latency
func (m *Metrics) ProviderCall(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ProviderRetry records a retry
func (m *Metrics) ProviderRetry() {
	if m == nil {
		return
	}
	m.providerRetries.Inc()
}

// ItemsProcessed records per-item outcomes of a batch
func (m *Metrics) ItemsProcessed(ok, failed int) {
	if m == nil {
		return
	}
	m.itemsEmbedded.Add(float64(ok))
	m.itemErrors.Add(float64(failed))
}

// SearchSource records the latency of one search source and whether it failed
func (m *Metrics) SearchSource(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.searchLatency.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.sourceFailures.WithLabelValues(source).Inc()
	}
}
