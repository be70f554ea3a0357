package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jgoulah/gridflex/internal/cache"
)

const namespace = "gridflex"

// Metrics holds the collectors of one private registry
type Metrics struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	analysisLatency prometheus.Histogram
}

// New registers the analysis metrics and the Go runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Band computations by outcome",
			},
			[]string{"outcome"},
		),
		analysisLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Time spent loading, aggregating and banding one company",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
	}
}

// ObserveAnalysis records one computation
func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration) {
	m.analyses.WithLabelValues(outcome).Inc()
	m.analysisLatency.Observe(elapsed.Seconds())
}

// WatchCache exposes the cache counters, read at scrape time
func (m *Metrics) WatchCache(stats func() cache.Stats) {
	counter := func(name, help string, value func(cache.Stats) uint64) {
		promauto.With(m.registry).NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "cache", Name: name, Help: help},
			func() float64 { return float64(value(stats())) },
		)
	}
	counter("hits_total", "Table lookups served from memory", func(s cache.Stats) uint64 { return s.Hits })
	counter("misses_total", "Table lookups that required a load", func(s cache.Stats) uint64 { return s.Misses })
	counter("loads_total", "Workbook reads performed", func(s cache.Stats) uint64 { return s.Loads })

	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "cache", Name: "entries", Help: "Cached tables"},
		func() float64 { return float64(stats().Entries) },
	)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
