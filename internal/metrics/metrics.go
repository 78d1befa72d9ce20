// Package metrics holds the consumer's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets are the handler latency buckets in seconds.
var LatencyBuckets = []float64{
	0.0001, 0.001, 0.01, 0.02, 0.05, 0.1, 0.2, 0.4, 0.6, 0.8,
	1.0, 1.2, 1.4, 1.6, 1.8, 2.0,
}

// Outcomes recorded for handled messages.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeDecode   = "decode_error"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeRetry    = "retry"
	OutcomePanic    = "panic"
)

type Metrics struct {
	Received         prometheus.Counter
	Handled          *prometheus.CounterVec
	RefillRequests   *prometheus.CounterVec
	Latency          *prometheus.HistogramVec
	PublishedReplies *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "received_messages_total",
			Help: "Messages received from the broker.",
		}),
		Handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handled_messages_total",
			Help: "Messages handled, by payload kind and outcome.",
		}, []string{"kind", "outcome"}),
		RefillRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refill_requests_total",
			Help: "Candidate refill requests, by reason and result.",
		}, []string{"reason", "result"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "latency_seconds",
			Help:    "Handler execution time.",
			Buckets: LatencyBuckets,
		}, []string{"operation"}),
		PublishedReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "send_messages_total",
			Help: "Messages published back to the broker.",
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.Received, m.Handled, m.RefillRequests, m.Latency, m.PublishedReplies)
	}
	return m
}

// ObserveSince records the time elapsed since start under operation.
func (m *Metrics) ObserveSince(operation string, start time.Time) {
	m.Latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
