package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes for a single outbox row.
const (
	OutboxDelivered = "delivered"
	OutboxRetry     = "retry"
	OutboxParked    = "parked"
)

// PublisherMetrics records the outbox relay.
type PublisherMetrics struct {
	batch      *prometheus.HistogramVec
	claimed    prometheus.Histogram
	deliveries *prometheus.CounterVec
}

func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	m := &PublisherMetrics{
		batch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "angkor_outbox_batch_duration_seconds",
			Help:    "Duration of outbox relay batches in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		claimed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "angkor_outbox_batch_rows",
			Help:    "Rows claimed per relay batch.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "angkor_outbox_deliveries_total",
			Help: "Outbox rows by event type and delivery outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.batch, m.claimed, m.deliveries)
	return m
}

func (p *PublisherMetrics) ObserveBatch(rows int, err error, took time.Duration) {
	if p == nil || p.batch == nil {
		return
	}
	p.batch.WithLabelValues(result(err)).Observe(took.Seconds())
	p.claimed.Observe(float64(rows))
}

// IncDelivery counts one row outcome; see the Outbox* constants.
func (p *PublisherMetrics) IncDelivery(eventType, outcome string) {
	if p == nil || p.deliveries == nil {
		return
	}
	p.deliveries.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}
