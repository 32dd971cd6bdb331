package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics records email queue processing outcomes.
type DeliveryMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	claimed  prometheus.Counter
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_attempts_total",
		Help: "Email delivery attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_send_duration_seconds",
		Help:    "Duration of transport sends in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	claimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_items_claimed_total",
		Help: "Queue items claimed for processing.",
	})
	reg.MustRegister(attempts, duration, claimed)
	return &DeliveryMetrics{
		attempts: attempts,
		duration: duration,
		claimed:  claimed,
	}
}

// IncAttempt increments the attempt counter for the given outcome.
func (d *DeliveryMetrics) IncAttempt(outcome string) {
	if d == nil || d.attempts == nil {
		return
	}
	d.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSendDuration records how long a transport send took.
func (d *DeliveryMetrics) ObserveSendDuration(outcome string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// AddClaimed records how many items a poll cycle claimed.
func (d *DeliveryMetrics) AddClaimed(n int) {
	if d == nil || d.claimed == nil || n <= 0 {
		return
	}
	d.claimed.Add(float64(n))
}
