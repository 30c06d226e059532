package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the storefront's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Checkouts       *prometheus.CounterVec
	OrdersCreated   prometheus.Counter
	CartMutations   *prometheus.CounterVec
	RemoteCalls     *prometheus.CounterVec
	RemoteLatency   *prometheus.HistogramVec
	OutboxPublished *prometheus.CounterVec
}

// New registers the collectors on a dedicated registry.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "orders_created_total",
			Help:      "Remote orders created by checkout.",
		}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "cart_mutations_total",
			Help:      "Cart operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "attribute_store_calls_total",
			Help:      "Calls to the attribute store by operation and outcome.",
		}, []string{"op", "outcome"}),
		RemoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "attribute_store_duration_ms",
			Help:      "Attribute store call latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "outbox_events_total",
			Help:      "Outbox events handled by the publisher.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Checkouts,
		m.OrdersCreated,
		m.CartMutations,
		m.RemoteCalls,
		m.RemoteLatency,
		m.OutboxPublished,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddOrdersCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrdersCreated.Add(float64(n))
}

func (m *Metrics) ObserveCartMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveRemoteCall(op, outcome string, durationMS float64) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
	m.RemoteLatency.WithLabelValues(op).Observe(durationMS)
}

func (m *Metrics) ObserveOutbox(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OutboxPublished.WithLabelValues(outcome).Add(float64(n))
}
