package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutboxMetrics counts outbox deliveries per flow and outcome.
type OutboxMetrics struct {
	Published *prometheus.CounterVec
}

func NewOutboxMetrics(service string) *OutboxMetrics {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodsaga",
		Subsystem: service,
		Name:      "outbox_published_total",
		Help:      "Total number of outbox messages handed to the bus, by flow and delivery status.",
	}, []string{"flow", "status"})

	prometheus.MustRegister(published)
	return &OutboxMetrics{Published: published}
}

// SagaMetrics counts saga-step executions per step and outcome.
type SagaMetrics struct {
	Steps *prometheus.CounterVec
}

func NewSagaMetrics(service string) *SagaMetrics {
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodsaga",
		Subsystem: service,
		Name:      "saga_steps_total",
		Help:      "Total number of saga step executions, by step and outcome.",
	}, []string{"step", "outcome"})

	prometheus.MustRegister(steps)
	return &SagaMetrics{Steps: steps}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
