package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromRegistry is the agent's internal Prometheus registry, rendered at
// the secondary /metrics/prom endpoint alongside the JSON /metrics. A
// private prometheus.NewRegistry keeps the default global registry (and
// its Go-runtime collectors) out of the scrape.
type PromRegistry struct {
	registry *prometheus.Registry

	BootstrapDuration prometheus.Histogram
	SetupStepsTotal   *prometheus.CounterVec
	IdleSeconds       prometheus.Gauge
}

// NewPromRegistry builds and registers every agent-owned metric.
func NewPromRegistry() *PromRegistry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PromRegistry{
		registry: reg,
		BootstrapDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spuff",
			Subsystem: "agent",
			Name:      "bootstrap_duration_seconds",
			Help:      "Wall-clock time from agent start to the first observed bootstrap.status=ready.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
		SetupStepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spuff",
			Subsystem: "agent",
			Name:      "setup_steps_total",
			Help:      "Count of setup executor steps by phase and outcome.",
		}, []string{"phase", "outcome"}),
		IdleSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "spuff",
			Subsystem: "agent",
			Name:      "idle_seconds",
			Help:      "Seconds since the agent last observed authenticated activity.",
		}),
	}
}

// Gatherer exposes the registry for the promhttp.HandlerFor wiring in
// server.go.
func (p *PromRegistry) Gatherer() prometheus.Gatherer { return p.registry }
