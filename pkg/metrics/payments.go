package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment lifecycle.
type PaymentMetrics struct {
	attempts *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	refunds  *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Payment attempts by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Gateway webhook events by type and disposition.",
	}, []string{"event_type", "disposition"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_refunds_total",
		Help: "Refunds issued by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(attempts, webhooks, refunds)
	return &PaymentMetrics{
		attempts: attempts,
		webhooks: webhooks,
		refunds:  refunds,
	}
}

// IncAttempt increments the attempt counter for the given outcome.
func (p *PaymentMetrics) IncAttempt(outcome string) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for the event type and disposition.
func (p *PaymentMetrics) IncWebhook(eventType, disposition string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(disposition)).Inc()
}

// IncRefund increments the refund counter for the given outcome.
func (p *PaymentMetrics) IncRefund(outcome string) {
	if p == nil || p.refunds == nil {
		return
	}
	p.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}
