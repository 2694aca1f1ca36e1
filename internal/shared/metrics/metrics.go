package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvbot"

var (
	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbound_events_total",
		Help:      "Inbound chat events by kind.",
	}, []string{"kind"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Conversation transitions by target state.",
	}, []string{"to"})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_outcomes_total",
		Help:      "Document pipeline runs by outcome.",
	}, []string{"outcome"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_ms",
		Help:      "Document pipeline duration in milliseconds.",
		Buckets:   []float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000, 180000},
	})

	payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_verifications_total",
		Help:      "Payment screenshot verifications by result.",
	}, []string{"result"})

	creditsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_consumed_total",
		Help:      "Purchased credits consumed by paid analyses.",
	})

	handlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_failures_total",
		Help:      "Event handler failures converted into apologies, by state.",
	}, []string{"state"})

	queueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_messages_total",
		Help:      "Queued chat events by result.",
	}, []string{"result"})
)

// IncInboundEvent counts an inbound event of the given kind.
func IncInboundEvent(kind string) {
	inboundEvents.WithLabelValues(kind).Inc()
}

// IncTransition counts a move into state.
func IncTransition(to string) {
	transitions.WithLabelValues(to).Inc()
}

// ObservePipeline records a pipeline run. outcome is analyzed, fallback or failed.
func ObservePipeline(outcome string, d time.Duration) {
	pipelineOutcomes.WithLabelValues(outcome).Inc()
	pipelineDuration.Observe(float64(d.Milliseconds()))
}

// IncPayment counts a payment verification: verified, override or rejected.
func IncPayment(result string) {
	payments.WithLabelValues(result).Inc()
}

// IncCreditConsumed counts one consumed credit.
func IncCreditConsumed() {
	creditsConsumed.Inc()
}

// IncHandlerFailure counts a recovered handler failure.
func IncHandlerFailure(state string) {
	handlerFailures.WithLabelValues(state).Inc()
}

// IncQueueMessage counts a queued event: enqueued, received, completed,
// failed or unrecoverable.
func IncQueueMessage(result string) {
	queueMessages.WithLabelValues(result).Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
