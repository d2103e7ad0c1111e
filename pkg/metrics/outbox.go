package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts webhook relay outcomes by event type.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	deferred prometheus.Counter
}

const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows processed by the webhook relay, by outcome.",
	}, []string{"event_type", "outcome"})
	deferred := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_deferred_total",
		Help: "Rows held back because an earlier event for the same payment failed in the batch.",
	})
	reg.MustRegister(outcomes, deferred)
	return &OutboxMetrics{outcomes: outcomes, deferred: deferred}
}

func (o *OutboxMetrics) Outcome(eventType, outcome string) {
	if o == nil || o.outcomes == nil {
		return
	}
	o.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (o *OutboxMetrics) Deferred() {
	if o == nil || o.deferred == nil {
		return
	}
	o.deferred.Inc()
}
