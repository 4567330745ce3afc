package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records counters for checkout orchestration.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	orders   prometheus.Counter
}

// NewCheckoutMetrics registers checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout executions by outcome.",
	}, []string{"outcome"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders created by successful checkouts.",
	})
	reg.MustRegister(attempts, orders)
	return &CheckoutMetrics{attempts: attempts, orders: orders}
}

// IncAttempt increments the attempt counter for the given outcome.
func (c *CheckoutMetrics) IncAttempt(outcome string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddOrders records how many orders a successful checkout produced.
func (c *CheckoutMetrics) AddOrders(n int) {
	if c == nil || c.orders == nil || n <= 0 {
		return
	}
	c.orders.Add(float64(n))
}
