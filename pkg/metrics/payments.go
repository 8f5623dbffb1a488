package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts webhook deliveries and seller transfers.
type PaymentMetrics struct {
	webhookEvents *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	transferCents *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_events_total",
		Help:      "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seller_transfers_total",
		Help:      "Seller transfer attempts by outcome.",
	}, []string{"outcome"})
	transferCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seller_transfer_cents_total",
		Help:      "Cents transferred to sellers by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(webhookEvents, transfers, transferCents)
	return &PaymentMetrics{
		webhookEvents: webhookEvents,
		transfers:     transfers,
		transferCents: transferCents,
	}
}

// ObserveWebhook counts one processed webhook delivery.
func (m *PaymentMetrics) ObserveWebhook(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveTransfer counts one seller transfer attempt and its amount.
func (m *PaymentMetrics) ObserveTransfer(outcome string, amountCents int64) {
	if m == nil || m.transfers == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.transfers.WithLabelValues(label).Inc()
	if amountCents > 0 {
		m.transferCents.WithLabelValues(label).Add(float64(amountCents))
	}
}
