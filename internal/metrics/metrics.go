// Package metrics exposes prometheus counters/gauges over the same signals
// the Catalog Store's Event log already records (§9: "the counter is
// derivable from the log and is an optimization"). Grounded on
// Mimic890-hyprbot's internal/metrics/metrics.go counter shape, but
// constructed as an explicit dependency object rather than a package-level
// singleton (§9: "process-wide mutable singletons -> explicit dependency
// objects constructed at startup").
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every exported series. Each series carries a "podgen"
// namespace.
type Metrics struct {
	EventsTotal *prometheus.CounterVec
	KeyPoolSize prometheus.Gauge
	ModelUsage  *prometheus.CounterVec
}

// New builds and registers a Metrics instance against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podgen",
			Name:      "events_total",
			Help:      "Total events recorded, by event type.",
		}, []string{"type"}),
		KeyPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "podgen",
			Name:      "key_pool_size",
			Help:      "Number of keys currently tracked by the API-key pool.",
		}),
		ModelUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podgen",
			Name:      "model_usage_total",
			Help:      "LLM calls by curated model id and outcome.",
		}, []string{"model_id", "outcome"}),
	}
	reg.MustRegister(m.EventsTotal, m.KeyPoolSize, m.ModelUsage)
	return m
}

// ObserveEvent records one occurrence of eventType.
func (m *Metrics) ObserveEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// SetKeyPoolSize reports the pool's current key count.
func (m *Metrics) SetKeyPoolSize(n int) {
	m.KeyPoolSize.Set(float64(n))
}

// ObserveModelUsage records one LLM call against modelID.
func (m *Metrics) ObserveModelUsage(modelID string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.ModelUsage.WithLabelValues(modelID, outcome).Inc()
}
