package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks lock contention, connector calls and retry behaviour.
type PaymentMetrics struct {
	lockOutcomes     *prometheus.CounterVec
	connectorLatency *prometheus.HistogramVec
	gsmRetries       *prometheus.CounterVec
	gsmExhausted     *prometheus.CounterVec
	pcrActions       *prometheus.CounterVec
	flowOutcomes     *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	lockOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_lock_outcome_total",
		Help: "Lock acquisition outcomes by action.",
	}, []string{"action", "result"})
	connectorLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_request_duration_seconds",
		Help:    "Connector call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "flow", "outcome"})
	gsmRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gsm_auto_retry_total",
		Help: "Connector retries triggered by gateway status map rules.",
	}, []string{"connector"})
	gsmExhausted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gsm_retries_exhausted_total",
		Help: "Retry loops that stopped with a Retry decision still pending.",
	}, []string{"merchant_id"})
	pcrActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pcr_action_total",
		Help: "Passive churn recovery actions taken.",
	}, []string{"workflow", "action"})
	flowOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_flow_outcome_total",
		Help: "Pipeline executions by flow and resulting intent status.",
	}, []string{"flow", "status"})
	reg.MustRegister(lockOutcomes, connectorLatency, gsmRetries, gsmExhausted, pcrActions, flowOutcomes)
	return &PaymentMetrics{
		lockOutcomes:     lockOutcomes,
		connectorLatency: connectorLatency,
		gsmRetries:       gsmRetries,
		gsmExhausted:     gsmExhausted,
		pcrActions:       pcrActions,
		flowOutcomes:     flowOutcomes,
	}
}

func (p *PaymentMetrics) LockOutcome(action, result string) {
	if p == nil || p.lockOutcomes == nil {
		return
	}
	p.lockOutcomes.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

func (p *PaymentMetrics) ObserveConnectorCall(connector, flow, outcome string, duration time.Duration) {
	if p == nil || p.connectorLatency == nil {
		return
	}
	p.connectorLatency.WithLabelValues(normalizeLabel(connector), normalizeLabel(flow), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (p *PaymentMetrics) IncGSMRetry(connector string) {
	if p == nil || p.gsmRetries == nil {
		return
	}
	p.gsmRetries.WithLabelValues(normalizeLabel(connector)).Inc()
}

func (p *PaymentMetrics) IncGSMExhausted(merchantID string) {
	if p == nil || p.gsmExhausted == nil {
		return
	}
	p.gsmExhausted.WithLabelValues(normalizeLabel(merchantID)).Inc()
}

func (p *PaymentMetrics) IncPCRAction(workflow, action string) {
	if p == nil || p.pcrActions == nil {
		return
	}
	p.pcrActions.WithLabelValues(normalizeLabel(workflow), normalizeLabel(action)).Inc()
}

func (p *PaymentMetrics) IncFlowOutcome(flow, status string) {
	if p == nil || p.flowOutcomes == nil {
		return
	}
	p.flowOutcomes.WithLabelValues(normalizeLabel(flow), normalizeLabel(status)).Inc()
}
