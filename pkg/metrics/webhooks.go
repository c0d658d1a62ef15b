package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts carrier webhook deliveries by carrier and outcome.
type WebhookMetrics struct {
	received *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counter on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homecheff",
		Name:      "carrier_webhooks_total",
		Help:      "Carrier webhook deliveries by carrier and outcome.",
	}, []string{"carrier", "outcome"})
	reg.MustRegister(received)
	return &WebhookMetrics{received: received}
}

// Observe records one webhook delivery.
func (m *WebhookMetrics) Observe(carrier, outcome string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(carrier), normalizeLabel(outcome)).Inc()
}
