package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	WebhookAccepted         = "accepted"
	WebhookDuplicate        = "duplicate"
	WebhookInvalidSignature = "invalid_signature"
	WebhookUnattributable   = "unattributable"
	WebhookMalformed        = "malformed"
	WebhookError            = "error"
)

// PaymentMetrics tracks gateway traffic. Unknown status codes get their own
// counter so an alert can fire on any increase.
type PaymentMetrics struct {
	webhooks       *prometheus.CounterVec
	unknownCodes   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	queryAttempts  prometheus.Counter
	paidTransition prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "angkor_payway_webhooks_total",
		Help: "PayWay pushbacks by outcome.",
	}, []string{"outcome"})
	unknownCodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "angkor_payway_unknown_status_codes_total",
		Help: "Gateway status codes outside the known vocabulary, mapped to pending.",
	}, []string{"code"})
	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "angkor_payway_status_query_duration_seconds",
		Help:    "Duration of transaction status queries including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	queryAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "angkor_payway_status_query_attempts_total",
		Help: "HTTP attempts made by transaction status queries.",
	})
	paid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "angkor_orders_paid_total",
		Help: "Orders that transitioned into paid.",
	})
	reg.MustRegister(webhooks, unknownCodes, queryDuration, queryAttempts, paid)
	return &PaymentMetrics{
		webhooks:       webhooks,
		unknownCodes:   unknownCodes,
		queryDuration:  queryDuration,
		queryAttempts:  queryAttempts,
		paidTransition: paid,
	}
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncUnknownStatusCode counts a status code the mapper did not recognize.
func (m *PaymentMetrics) IncUnknownStatusCode(code string) {
	if m == nil || m.unknownCodes == nil {
		return
	}
	m.unknownCodes.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *PaymentMetrics) ObserveStatusQuery(success bool, attempts int, duration time.Duration) {
	if m == nil || m.queryDuration == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.queryDuration.WithLabelValues(result).Observe(duration.Seconds())
	if attempts > 0 {
		m.queryAttempts.Add(float64(attempts))
	}
}

func (m *PaymentMetrics) IncPaid() {
	if m == nil || m.paidTransition == nil {
		return
	}
	m.paidTransition.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
