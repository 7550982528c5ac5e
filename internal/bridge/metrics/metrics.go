// Package metrics exposes the Prometheus instrumentation for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TokensIssued   *prometheus.CounterVec
	GrantFailures  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	BroadcastDrops prometheus.Counter

	registry *prometheus.Registry
}

// New builds the metric set on a fresh registry so tests can construct
// isolated instances without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpbridge_tokens_issued_total",
			Help: "Access/refresh token pairs issued, labelled by grant type.",
		}, []string{"grant"}),
		GrantFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpbridge_grant_failures_total",
			Help: "Token endpoint failures, labelled by OAuth error code.",
		}, []string{"error"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mcpbridge_stream_sessions_active",
			Help: "Currently registered streaming sessions.",
		}),
		BroadcastDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "mcpbridge_stream_broadcast_drops_total",
			Help: "Sessions removed because a broadcast could not be delivered.",
		}),
		registry: registry,
	}
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
