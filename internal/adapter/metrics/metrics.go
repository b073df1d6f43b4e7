// Package metrics exposes hub activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

const namespace = "im_signaling"

// StatsFunc returns a point-in-time snapshot of the hub.
type StatsFunc func() model.HubStats

// Metrics implements the router's measurement hooks on Prometheus collectors.
type Metrics struct {
	routed    *prometheus.CounterVec
	delivered *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// New registers every collector on reg. Occupancy gauges read stats at scrape time.
func New(reg prometheus.Registerer, stats StatsFunc) *Metrics {
	m := &Metrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "events_total",
			Help:      "Inbound events routed, by event family.",
		}, []string{"family"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "deliveries_total",
			Help:      "Events pushed into connection mailboxes, by event family.",
		}, []string{"family"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Events whose recipient could not be resolved, by applied policy.",
		}, []string{"policy"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "rejected_total",
			Help:      "Inbound events rejected, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.routed, m.delivered, m.fallbacks, m.rejected)

	if stats != nil {
		gauge := func(name, help string, fn func(model.HubStats) float64) prometheus.Collector {
			return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      name,
				Help:      help,
			}, func() float64 { return fn(stats()) })
		}
		reg.MustRegister(
			gauge("users", "Registered users with at least one live connection.", func(s model.HubStats) float64 { return float64(s.TotalUsers) }),
			gauge("connections", "Live connections.", func(s model.HubStats) float64 { return float64(s.TotalConnections) }),
			gauge("rooms", "Live rooms.", func(s model.HubStats) float64 { return float64(s.TotalRooms) }),
			gauge("tracked_calls", "Calls held by the tracker.", func(s model.HubStats) float64 { return float64(s.TrackedCalls) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      "dropped_events_total",
				Help:      "Events lost to dead or saturated connections.",
			}, func() float64 { return float64(stats().DroppedEvents) }),
		)
	}

	return m
}

func (m *Metrics) EventRouted(family string, delivered int) {
	m.routed.WithLabelValues(family).Inc()
	m.delivered.WithLabelValues(family).Add(float64(delivered))
}

func (m *Metrics) FallbackApplied(policy string) {
	m.fallbacks.WithLabelValues(policy).Inc()
}

func (m *Metrics) DispatchRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
