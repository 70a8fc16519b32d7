package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestedCommentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_comments_total",
			Help: "Total number of comments pulled from social platforms (count)",
		},
		[]string{"platform", "status"},
	)

	IngestionCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_cycles_total",
			Help: "Total number of ingestion poll cycles (count)",
		},
		[]string{"status"},
	)

	ClassifiedCommentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classified_comments_total",
			Help: "Total number of comments classified (count)",
		},
		[]string{"sentiment", "status"},
	)

	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classification_duration_ms",
			Help:    "LLM classification duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"status"},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Total number of executed moderation actions (count)",
		},
		[]string{"action", "status"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_duration_ms",
			Help:    "Action executor duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"action"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to the dead-letter queue (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	RequeuedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requeued_messages_total",
			Help: "Total number of messages re-published for redelivery (count)",
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked by the rate limiter (count)",
		},
		[]string{"status"},
	)
)

func RegisterIngestionMetrics() {
	prometheus.MustRegister(
		IngestedCommentsTotal,
		IngestionCyclesTotal,
	)
}

func RegisterClassifierMetrics() {
	prometheus.MustRegister(
		ClassifiedCommentsTotal,
		ClassificationDuration,
		ActionsTotal,
		ActionDuration,
	)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(
		RetryAttemptsTotal,
		DLQMessagesTotal,
		RequeuedMessagesTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
	)
}

func RegisterDashboardMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveClassificationDuration(d time.Duration, status string) {
	ClassificationDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

func ObserveActionDuration(d time.Duration, action string) {
	ActionDuration.WithLabelValues(action).Observe(float64(d.Milliseconds()))
}
