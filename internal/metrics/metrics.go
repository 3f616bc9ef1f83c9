// Package metrics exposes the Prometheus counters that separate a degraded
// read from a genuine zero on the dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	StoreUnavailable *prometheus.CounterVec
	NumericSkipped   *prometheus.CounterVec
	AlertsGenerated  *prometheus.CounterVec
	CacheResults     *prometheus.CounterVec
}

// New registers the service counters on a private registry together with
// the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		StoreUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onehealth",
			Name:      "store_unavailable_total",
			Help:      "Reads answered with an empty result because the record store failed.",
		}, []string{"domain"}),
		NumericSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onehealth",
			Name:      "numeric_skipped_total",
			Help:      "Indicator values excluded from sums because they were empty or malformed.",
		}, []string{"domain"}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onehealth",
			Name:      "alerts_generated_total",
			Help:      "Alerts emitted by the correlation generator.",
		}, []string{"type"}),
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onehealth",
			Name:      "cache_results_total",
			Help:      "Read-through cache lookups by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StoreUnavailable,
		m.NumericSkipped,
		m.AlertsGenerated,
		m.CacheResults,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StoreFailed(domain string) {
	if m == nil {
		return
	}
	m.StoreUnavailable.WithLabelValues(domain).Inc()
}

func (m *Metrics) Skipped(domain string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.NumericSkipped.WithLabelValues(domain).Add(float64(n))
}

func (m *Metrics) Alert(kind string) {
	if m == nil {
		return
	}
	m.AlertsGenerated.WithLabelValues(kind).Inc()
}

func (m *Metrics) Cache(result string) {
	if m == nil {
		return
	}
	m.CacheResults.WithLabelValues(result).Inc()
}
