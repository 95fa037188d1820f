// Package metrics holds the Prometheus collectors shared by the delivery
// engines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "beacon"

type Metrics struct {
	deliveries     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	broadcasts     prometheus.Counter
	incidentAlerts *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by target kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Wall time of outbound deliveries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Events broadcast to an organization's targets.",
		}),
		incidentAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_alerts_total",
			Help:      "Incident alerts sent to the alert receiver.",
		}, []string{"action", "outcome"}),
	}

	reg.MustRegister(m.deliveries, m.duration, m.broadcasts, m.incidentAlerts)
	return m
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveDelivery records one finished delivery. kind is "webhook" or the
// notification channel name.
func (m *Metrics) ObserveDelivery(kind string, success bool, durationMs int64) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, outcome(success)).Inc()
	m.duration.WithLabelValues(kind).Observe(float64(durationMs) / 1000)
}

func (m *Metrics) IncBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

// ObserveIncidentAlert records a fire or resolve call to the receiver.
func (m *Metrics) ObserveIncidentAlert(action string, success bool) {
	if m == nil {
		return
	}
	m.incidentAlerts.WithLabelValues(action, outcome(success)).Inc()
}
